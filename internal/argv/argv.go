package argv

import (
	"strings"
	"unicode"
)

// Parse converts a token list into a flat key/value map.
//
// Any token starting with "--" is a flag. Three shapes are accepted:
//
//	--key=value
//	--key value   (when the next token is not itself a flag)
//	--key         (implies the string "true")
//
// Dash-separated flag names are normalized to camelCase keys, so
// "--backend-port" and "--backendPort" land on the same entry. Tokens that
// are not flags are ignored; this tool has no positional arguments. All
// values stay strings — range and type checks belong to the consumer.
func Parse(tokens []string) map[string]string {
	result := make(map[string]string)

	for i := 0; i < len(tokens); i++ {
		token := tokens[i]
		if !strings.HasPrefix(token, "--") {
			continue
		}

		name := strings.TrimPrefix(token, "--")
		if name == "" {
			continue
		}

		// --key=value
		if idx := strings.Index(name, "="); idx >= 0 {
			result[NormalizeKey(name[:idx])] = name[idx+1:]
			continue
		}

		// --key value, unless the next token is another flag
		if i+1 < len(tokens) && !strings.HasPrefix(tokens[i+1], "--") {
			result[NormalizeKey(name)] = tokens[i+1]
			i++
			continue
		}

		// bare --key
		result[NormalizeKey(name)] = "true"
	}

	return result
}

// NormalizeKey converts a dash-separated flag name to camelCase:
// "backend-port" -> "backendPort".
func NormalizeKey(name string) string {
	parts := strings.Split(name, "-")
	if len(parts) == 1 {
		return name
	}

	var b strings.Builder
	wroteFirst := false
	for _, part := range parts {
		if part == "" {
			continue
		}
		if !wroteFirst {
			b.WriteString(part)
			wroteFirst = true
			continue
		}
		runes := []rune(part)
		runes[0] = unicode.ToUpper(runes[0])
		b.WriteString(string(runes))
	}
	return b.String()
}

// SplitCommand tokenizes a command override string into executable plus
// arguments, honoring single and double quotes. Quote characters toggle a
// mode flag and are stripped from the output; whitespace splits only outside
// quotes. This is deliberately not a shell — no expansion, no injection.
func SplitCommand(s string) []string {
	var tokens []string
	var current strings.Builder
	var quote rune
	inToken := false

	for _, r := range s {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			} else {
				current.WriteRune(r)
			}
		case r == '\'' || r == '"':
			quote = r
			inToken = true
		case unicode.IsSpace(r):
			if inToken {
				tokens = append(tokens, current.String())
				current.Reset()
				inToken = false
			}
		default:
			current.WriteRune(r)
			inToken = true
		}
	}
	if inToken {
		tokens = append(tokens, current.String())
	}

	return tokens
}
