package cli

import (
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/lakebench/lakebench/internal/system"
)

func newDoctorCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Report the resolved configuration and host fidelity snapshot",
		Long: `Print the configuration the tool would run with and everything the host
prober can determine about this machine. Fields that cannot be probed show
as unset; set LAKEBENCH_* environment overrides to pin them.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()

			t := table.NewWriter()
			t.SetOutputMirror(out)
			t.SetStyle(table.StyleLight)
			t.AppendHeader(table.Row{"Setting", "Value"})
			t.AppendRow(table.Row{"fixtures_dir", annotateDir(cfg.FixturesDir)})
			t.AppendRow(table.Row{"results_dir", annotateDir(cfg.ResultsDir)})
			t.AppendRow(table.Row{"label", cfg.Label})
			t.AppendRow(table.Row{"storage_backend", cfg.StorageBackend})
			t.AppendRow(table.Row{"backend_profile", orUnset(cfg.BackendProfile)})
			t.AppendRow(table.Row{"store_path", cfg.StorePath})
			t.Render()

			info := system.Probe(system.OverridesFromEnv())
			ft := table.NewWriter()
			ft.SetOutputMirror(out)
			ft.SetStyle(table.StyleLight)
			ft.AppendHeader(table.Row{"Fidelity Field", "Value"})
			ft.AppendRow(table.Row{"host", system.HostName()})
			ft.AppendRow(table.Row{"image_version", deref(info.ImageVersion)})
			ft.AppendRow(table.Row{"hardening_profile_id", deref(info.HardeningProfileID)})
			ft.AppendRow(table.Row{"hardening_profile_sha256", deref(info.HardeningProfileSHA256)})
			ft.AppendRow(table.Row{"cpu_model", deref(info.CPUModel)})
			ft.AppendRow(table.Row{"cpu_microcode", deref(info.CPUMicrocode)})
			ft.AppendRow(table.Row{"kernel", deref(info.Kernel)})
			ft.AppendRow(table.Row{"boot_params", deref(info.BootParams)})
			ft.AppendRow(table.Row{"cpu_steal_pct", derefFloat(info.CPUStealPct)})
			ft.AppendRow(table.Row{"numa_topology", deref(info.NUMATopology)})
			ft.AppendRow(table.Row{"egress_policy_sha256", deref(info.EgressPolicySHA256)})
			ft.AppendRow(table.Row{"run_mode", deref(info.RunMode)})
			ft.AppendRow(table.Row{"maintenance_window_id", deref(info.MaintenanceWindowID)})
			ft.Render()

			return nil
		},
	}
}

func annotateDir(dir string) string {
	if _, err := os.Stat(dir); err != nil {
		return dir + " (missing)"
	}
	return dir
}

func orUnset(s string) string {
	if s == "" {
		return "(unset)"
	}
	return s
}

func deref(s *string) string {
	if s == nil {
		return "(unset)"
	}
	return *s
}

func derefFloat(f *float64) string {
	if f == nil {
		return "(unset)"
	}
	return fmt.Sprintf("%.2f", *f)
}
