package resolver

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/harshul/devmux/internal/argv"
)

// Tool family names, used in error reporting.
const (
	BackendFamily  = "backend interpreter"
	FrontendFamily = "frontend runner"
)

// probeTimeout bounds a single version probe. A candidate that cannot print
// its version inside this window is treated as unusable.
const probeTimeout = 10 * time.Second

// Candidate is one concrete way to invoke a tool. Ordering across a
// candidate list encodes priority: explicit override first, then local
// environment paths, then platform defaults.
type Candidate struct {
	Exe   string
	Args  []string
	Label string
}

// CommandLine returns the executable and full argument vector for spawning
// the tool with extra trailing arguments.
func (c Candidate) CommandLine(extra ...string) (string, []string) {
	args := make([]string, 0, len(c.Args)+len(extra))
	args = append(args, c.Args...)
	args = append(args, extra...)
	return c.Exe, args
}

// ResolutionError reports that no candidate for a tool family passed its
// version probe. It carries the full ordered list that was attempted.
type ResolutionError struct {
	Family    string
	Attempted []Candidate
}

func (e *ResolutionError) Error() string {
	labels := make([]string, len(e.Attempted))
	for i, c := range e.Attempted {
		labels[i] = c.Label
	}
	return fmt.Sprintf("no usable command found for %s (tried: %s)",
		e.Family, strings.Join(labels, ", "))
}

// Resolve returns the first candidate that passes its version probe.
// Candidates whose executable contains a path separator are checked for
// existence first, so missing venv layouts are skipped without spawning
// anything. Exactly one command is resolved per family per run; there is no
// re-resolution mid-session.
func Resolve(family string, cands []Candidate) (Candidate, error) {
	for _, c := range cands {
		if strings.ContainsAny(c.Exe, `/\`) {
			if _, err := os.Stat(c.Exe); err != nil {
				continue
			}
		}
		if probe(c) {
			return c, nil
		}
	}
	return Candidate{}, &ResolutionError{Family: family, Attempted: cands}
}

// probe invokes the candidate with a version flag and silenced output. Only
// a zero exit status is accepted: presence on disk is not enough, the binary
// has to actually run (broken symlinks and wrong-arch binaries fail here).
func probe(c Candidate) bool {
	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()

	args := append(append([]string{}, c.Args...), "--version")
	cmd := exec.CommandContext(ctx, c.Exe, args...)
	cmd.Stdout = io.Discard
	cmd.Stderr = io.Discard
	return cmd.Run() == nil
}

// BackendCandidates builds the priority-ordered interpreter list for the
// backend service: explicit override, then virtual environments physically
// present under backendDir, then platform default names.
func BackendCandidates(override, backendDir string) []Candidate {
	var cands []Candidate

	if override != "" {
		if tokens := argv.SplitCommand(override); len(tokens) > 0 {
			cands = append(cands, Candidate{
				Exe:   tokens[0],
				Args:  tokens[1:],
				Label: fmt.Sprintf("override (%s)", override),
			})
		}
	}

	for _, venv := range []string{".venv", "venv"} {
		for _, layout := range []struct{ sub, exe string }{
			{"bin", "python"},
			{"Scripts", "python.exe"},
		} {
			path := filepath.Join(backendDir, venv, layout.sub, layout.exe)
			if _, err := os.Stat(path); err != nil {
				continue
			}
			cands = append(cands, Candidate{
				Exe:   path,
				Label: fmt.Sprintf("%s/%s interpreter", venv, layout.sub),
			})
		}
	}

	for _, name := range defaultInterpreters() {
		cands = append(cands, Candidate{Exe: name, Label: name + " on PATH"})
	}
	return cands
}

func defaultInterpreters() []string {
	if runtime.GOOS == "windows" {
		return []string{"python", "py"}
	}
	return []string{"python3", "python"}
}

// FrontendCandidates builds the priority-ordered package-manager runner list
// for the frontend service: explicit override, then the ambient runner that
// launched this process (npm exposes its own CLI script and node binary
// through well-known environment variables), then the runner the project's
// lock file asks for, then platform defaults.
func FrontendCandidates(override, frontendDir string) []Candidate {
	var cands []Candidate

	if override != "" {
		if tokens := argv.SplitCommand(override); len(tokens) > 0 {
			cands = append(cands, Candidate{
				Exe:   tokens[0],
				Args:  tokens[1:],
				Label: fmt.Sprintf("override (%s)", override),
			})
		}
	}

	if c, ok := ambientRunner(); ok {
		cands = append(cands, c)
	}

	if runner := lockFileRunner(frontendDir); runner != "" {
		cands = append(cands, Candidate{Exe: runner, Label: runner + " (lock file)"})
	}

	for _, name := range defaultRunners() {
		cands = append(cands, Candidate{Exe: name, Label: name + " on PATH"})
	}
	return cands
}

// ambientRunner reuses whatever package manager invoked this orchestrator,
// when npm_execpath and npm_node_execpath both point at existing files.
// This avoids searching for a tool the user is already running.
func ambientRunner() (Candidate, bool) {
	execPath := os.Getenv("npm_execpath")
	nodePath := os.Getenv("npm_node_execpath")
	if execPath == "" || nodePath == "" {
		return Candidate{}, false
	}
	if _, err := os.Stat(execPath); err != nil {
		return Candidate{}, false
	}
	if _, err := os.Stat(nodePath); err != nil {
		return Candidate{}, false
	}
	return Candidate{
		Exe:   nodePath,
		Args:  []string{execPath},
		Label: "ambient runner (npm_execpath)",
	}, true
}

// lockFileRunner maps the frontend project's lock file to its package
// manager. npm itself is left to the default list.
func lockFileRunner(frontendDir string) string {
	checks := []struct {
		file   string
		runner string
	}{
		{"bun.lockb", "bun"},
		{"bun.lock", "bun"},
		{"pnpm-lock.yaml", "pnpm"},
		{"yarn.lock", "yarn"},
	}
	for _, c := range checks {
		if _, err := os.Stat(filepath.Join(frontendDir, c.file)); err == nil {
			return c.runner
		}
	}
	return ""
}

func defaultRunners() []string {
	if runtime.GOOS == "windows" {
		return []string{"npm.cmd", "npm"}
	}
	return []string{"npm"}
}
