package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/harshul/devmux/internal/config"
	"github.com/harshul/devmux/internal/ports"
	"github.com/harshul/devmux/internal/proxy"
	"github.com/harshul/devmux/internal/resolver"
	"github.com/harshul/devmux/internal/supervisor"
	"github.com/harshul/devmux/internal/ui"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start backend, frontend, and the proxy",
	Long: `The run command resolves the backend interpreter and the frontend
runner, starts both dev servers, and binds a reverse proxy in front
of them. /api and /ws requests go to the backend, everything else to
the frontend.

If any piece dies, everything is stopped and devmux exits with that
piece's exit code.

Flags take the form --key=value, --key value, or a bare --key (true):
  --backend-port   backend dev server port (default 8000)
  --frontend-port  frontend dev server port (default 5173)
  --proxy-port     public proxy port (default 3000)
  --host           bind host for all three (default 127.0.0.1)
  --backend-dir    backend project directory (default backend)
  --frontend-dir   frontend project directory (default frontend)
  --python         backend interpreter override
  --npm            frontend runner override
  --label-output   prefix child output with [backend]/[frontend]
  --tui            full-screen dashboard instead of scrolling output

The same settings are read from .devmux.yaml and DEVMUX_* environment
variables; flags win.`,
	// Flags are parsed by the internal settings layer so the same tokens
	// work as flags, env vars, and file keys.
	DisableFlagParsing: true,
	RunE:               runRun,
}

func runRun(cmd *cobra.Command, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get current directory: %w", err)
	}

	cfg, err := config.Load(cwd, args)
	if err != nil {
		return err
	}

	backend, err := resolveTool(resolver.BackendFamily,
		resolver.BackendCandidates(cfg.PythonCmd, cfg.BackendDir))
	if err != nil {
		return err
	}
	frontend, err := resolveTool(resolver.FrontendFamily,
		resolver.FrontendCandidates(cfg.NpmCmd, cfg.FrontendDir))
	if err != nil {
		return err
	}
	ui.Success(fmt.Sprintf("backend interpreter: %s", backend.Label))
	ui.Success(fmt.Sprintf("frontend runner: %s", frontend.Label))

	// Busy upstream ports are worth a heads-up before the children fail
	// with their own less helpful errors.
	for _, p := range []struct {
		role string
		port int
	}{
		{"backend", cfg.BackendPort},
		{"frontend", cfg.FrontendPort},
	} {
		if !ports.IsAvailable(p.port) {
			ui.Warn(fmt.Sprintf("%s %s", p.role, ports.Describe(p.port)))
		}
	}

	var dash *ui.Dashboard
	codeCh := make(chan int, 1)
	exit := func(code int) {
		codeCh <- code
		if dash != nil {
			dash.Quit()
		} else {
			os.Exit(code)
		}
	}

	sup := supervisor.New(exit)
	sup.HandleSignals()

	upstreamHost := proxy.UpstreamHost(cfg.Host)
	px := proxy.New(proxy.Options{
		Host:     cfg.Host,
		Port:     cfg.ProxyPort,
		Backend:  proxy.Target{Host: upstreamHost, Port: cfg.BackendPort},
		Frontend: proxy.Target{Host: upstreamHost, Port: cfg.FrontendPort},
	})
	// Bind before spawning anything so a busy proxy port fails fast and
	// leaves no children behind.
	if err := px.Listen(); err != nil {
		return err
	}
	sup.RegisterCloser(px)
	go px.Serve()

	if cfg.TUI {
		dash = ui.NewDashboard(px.Addr(),
			[]string{"backend", "frontend"},
			[]int{cfg.BackendPort, cfg.FrontendPort},
			func() { sup.Shutdown(0) })
		sup.OnStateChange = func(label string, running, failed bool) {
			switch {
			case running:
				dash.SetState(label, ui.StateRunning)
			case failed:
				dash.SetState(label, ui.StateFailed)
			default:
				dash.SetState(label, ui.StateStopped)
			}
		}
	}

	backendOut, backendErr := childStreams(cfg, dash, "backend", 0)
	frontendOut, frontendErr := childStreams(cfg, dash, "frontend", 1)

	exe, bargs := backend.CommandLine("-m", "uvicorn", "main:app",
		"--host", cfg.Host, "--port", strconv.Itoa(cfg.BackendPort), "--reload")
	if _, err := sup.Start(exe, bargs, cfg.BackendDir, "backend", backendOut, backendErr); err != nil {
		sup.Shutdown(1)
		return err
	}

	exe, fargs := frontend.CommandLine("run", "dev", "--",
		"--host", cfg.Host, "--port", strconv.Itoa(cfg.FrontendPort))
	if _, err := sup.Start(exe, fargs, cfg.FrontendDir, "frontend", frontendOut, frontendErr); err != nil {
		sup.Shutdown(1)
		return err
	}

	ui.Info(fmt.Sprintf("proxy listening on http://%s", px.Addr()))

	if dash != nil {
		if err := dash.Run(); err != nil {
			ui.Warn(fmt.Sprintf("dashboard error: %v", err))
		}
		// The terminal is back to normal; finish any shutdown still in
		// flight and exit with its code.
		sup.Shutdown(0)
		os.Exit(<-codeCh)
	}

	<-sup.Done()
	return nil
}

// resolveTool wraps resolution with operator-facing reporting: on failure,
// every attempted candidate is listed before the error is returned.
func resolveTool(family string, cands []resolver.Candidate) (resolver.Candidate, error) {
	cand, err := resolver.Resolve(family, cands)
	if err == nil {
		return cand, nil
	}
	var resErr *resolver.ResolutionError
	if errors.As(err, &resErr) {
		ui.Error(fmt.Sprintf("no usable command found for the %s", family))
		for _, c := range resErr.Attempted {
			ui.Info(fmt.Sprintf("  tried %s", c.Label))
		}
	}
	return resolver.Candidate{}, err
}

// childStreams picks the stdout/stderr writers for a child. Plain mode
// passes the parent's streams straight through; label mode prefixes each
// line; the dashboard swallows the terminal entirely and shows lines in
// its log tail.
func childStreams(cfg config.Config, dash *ui.Dashboard, label string, color int) (io.Writer, io.Writer) {
	if dash != nil {
		w := ui.NewLabelWriter(io.Discard, label, color).Mirror(func(line string) {
			dash.Append(fmt.Sprintf("[%s] %s", label, line))
		})
		return w, w
	}
	if cfg.LabelOutput {
		return ui.NewLabelWriter(os.Stdout, label, color),
			ui.NewLabelWriter(os.Stderr, label, color)
	}
	return nil, nil
}
