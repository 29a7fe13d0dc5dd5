package doctor

import (
	"errors"
	"fmt"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/harshul/devmux/internal/config"
	"github.com/harshul/devmux/internal/ports"
	"github.com/harshul/devmux/internal/resolver"
)

// ToolReport is the resolution outcome for one tool family.
type ToolReport struct {
	Family    string
	Resolved  bool
	Command   string
	Attempted []string
}

// PortReport is the availability status of one configured port.
type PortReport struct {
	Role   string
	Port   int
	InUse  bool
	Detail string
}

// HostReport is a small snapshot of the machine the services will run on.
type HostReport struct {
	CPUs        int
	TotalMemory uint64
	UsedPercent float64
}

// Diagnosis is everything the doctor command reports on.
type Diagnosis struct {
	Tools   []ToolReport
	Ports   []PortReport
	Host    HostReport
	Healthy bool
	Issues  []string
}

// Diagnose runs the same tool resolution and port checks a real run would,
// without spawning anything, and adds host stats.
func Diagnose(cfg config.Config) Diagnosis {
	var d Diagnosis
	d.Healthy = true

	families := []struct {
		family string
		cands  []resolver.Candidate
	}{
		{resolver.BackendFamily, resolver.BackendCandidates(cfg.PythonCmd, cfg.BackendDir)},
		{resolver.FrontendFamily, resolver.FrontendCandidates(cfg.NpmCmd, cfg.FrontendDir)},
	}
	for _, f := range families {
		report := ToolReport{Family: f.family}
		cand, err := resolver.Resolve(f.family, f.cands)
		if err == nil {
			report.Resolved = true
			report.Command = cand.Label
		} else {
			var resErr *resolver.ResolutionError
			if errors.As(err, &resErr) {
				for _, c := range resErr.Attempted {
					report.Attempted = append(report.Attempted, c.Label)
				}
			}
			d.Healthy = false
			d.Issues = append(d.Issues, fmt.Sprintf("no usable command for %s", f.family))
		}
		d.Tools = append(d.Tools, report)
	}

	for _, p := range []struct {
		role string
		port int
	}{
		{"backend", cfg.BackendPort},
		{"frontend", cfg.FrontendPort},
		{"proxy", cfg.ProxyPort},
	} {
		report := PortReport{Role: p.role, Port: p.port}
		report.InUse = !ports.IsAvailable(p.port)
		report.Detail = ports.Describe(p.port)
		if report.InUse {
			// In-use upstream ports are a warning, not a failure: the
			// occupant may well be a dev server the operator left running.
			d.Issues = append(d.Issues, fmt.Sprintf("%s %s", p.role, report.Detail))
		}
		d.Ports = append(d.Ports, report)
	}

	if count, err := cpu.Counts(true); err == nil {
		d.Host.CPUs = count
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		d.Host.TotalMemory = vm.Total
		d.Host.UsedPercent = vm.UsedPercent
	}

	return d
}

// FormatBytes renders a byte count in the nearest binary unit.
func FormatBytes(b uint64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := uint64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(b)/float64(div), "KMGTPE"[exp])
}
