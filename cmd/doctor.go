package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/harshul/devmux/internal/config"
	"github.com/harshul/devmux/internal/doctor"
	"github.com/harshul/devmux/internal/ui"
)

// doctorCmd represents the doctor command
var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check tool resolution and port availability",
	Long: `The doctor command runs the same tool resolution and port checks a
real run would, without starting anything, and reports what it finds.
Use it to understand why 'devmux run' picked a particular interpreter
or refused to start.

Accepts the same flags, environment variables, and .devmux.yaml keys
as 'devmux run'.`,
	DisableFlagParsing: true,
	RunE:               runDoctor,
}

func runDoctor(cmd *cobra.Command, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get current directory: %w", err)
	}

	cfg, err := config.Load(cwd, args)
	if err != nil {
		return err
	}

	d := doctor.Diagnose(cfg)

	fmt.Println("Tools")
	for _, tool := range d.Tools {
		if tool.Resolved {
			ui.Success(fmt.Sprintf("%s: %s", tool.Family, tool.Command))
		} else {
			ui.Error(fmt.Sprintf("%s: not found", tool.Family))
			for _, label := range tool.Attempted {
				ui.Info(fmt.Sprintf("  tried %s", label))
			}
		}
	}

	fmt.Println("\nPorts")
	for _, port := range d.Ports {
		if port.InUse {
			ui.Warn(fmt.Sprintf("%s: %s", port.Role, port.Detail))
		} else {
			ui.Success(fmt.Sprintf("%s: %s", port.Role, port.Detail))
		}
	}

	fmt.Println("\nHost")
	ui.Info(fmt.Sprintf("%d logical CPUs", d.Host.CPUs))
	ui.Info(fmt.Sprintf("%s memory, %.0f%% in use",
		doctor.FormatBytes(d.Host.TotalMemory), d.Host.UsedPercent))

	if !d.Healthy {
		return fmt.Errorf("environment is not ready: %d issue(s) found", len(d.Issues))
	}
	ui.Success("environment looks ready")
	return nil
}
