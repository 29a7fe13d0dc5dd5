package argv

import (
	"reflect"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name   string
		tokens []string
		want   map[string]string
	}{
		{
			name:   "key equals value",
			tokens: []string{"--backend-port=9001"},
			want:   map[string]string{"backendPort": "9001"},
		},
		{
			name:   "key space value",
			tokens: []string{"--backend-port", "9001"},
			want:   map[string]string{"backendPort": "9001"},
		},
		{
			name:   "bare flag implies true",
			tokens: []string{"--host"},
			want:   map[string]string{"host": "true"},
		},
		{
			name:   "bare flag followed by another flag",
			tokens: []string{"--tui", "--proxy-port", "3000"},
			want:   map[string]string{"tui": "true", "proxyPort": "3000"},
		},
		{
			name:   "non-flag tokens ignored",
			tokens: []string{"run", "--host", "0.0.0.0", "extra"},
			want:   map[string]string{"host": "0.0.0.0"},
		},
		{
			name:   "last occurrence wins",
			tokens: []string{"--port=1", "--port=2"},
			want:   map[string]string{"port": "2"},
		},
		{
			name:   "empty value kept",
			tokens: []string{"--python="},
			want:   map[string]string{"python": ""},
		},
		{
			name:   "no tokens",
			tokens: nil,
			want:   map[string]string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Parse(tt.tokens)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Parse(%v) = %v, want %v", tt.tokens, got, tt.want)
			}
		})
	}
}

func TestNormalizeKey(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"backend-port", "backendPort"},
		{"backendPort", "backendPort"},
		{"host", "host"},
		{"frontend-dev-port", "frontendDevPort"},
		{"a--b", "aB"},
	}

	for _, tt := range tests {
		if got := NormalizeKey(tt.in); got != tt.want {
			t.Errorf("NormalizeKey(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSplitCommand(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{
			name: "plain words",
			in:   "python3 -m uvicorn",
			want: []string{"python3", "-m", "uvicorn"},
		},
		{
			name: "double quoted path with space",
			in:   `"/opt/my tools/python" -u`,
			want: []string{"/opt/my tools/python", "-u"},
		},
		{
			name: "single quotes",
			in:   "npm 'run dev'",
			want: []string{"npm", "run dev"},
		},
		{
			name: "quote inside token",
			in:   `py --flag="a b"`,
			want: []string{"py", "--flag=a b"},
		},
		{
			name: "leading and trailing space",
			in:   "  node  ",
			want: []string{"node"},
		},
		{
			name: "empty string",
			in:   "",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SplitCommand(tt.in)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("SplitCommand(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}
