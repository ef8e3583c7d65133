package cli

import (
	"cropstudy/internal/apperrors"
	"cropstudy/internal/config"
	"cropstudy/internal/gateway"
	"fmt"
	"maps"
	"slices"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

func newDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check that the processing and data services are reachable",
		Args:  validArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadRunConfig()
			gw := gateway.NewClient(gateway.LoadConfigFromEnv(), nil)
			resp := newHealthChecker(gw, cfg).Readiness(cmd.Context())

			table := tablewriter.NewWriter(cmd.OutOrStdout())
			table.Header("Check", "Status", "Message")
			for _, name := range slices.Sorted(maps.Keys(resp.Checks)) {
				c := resp.Checks[name]
				table.Append(name, string(c.Status), c.Message)
			}
			if err := table.Render(); err != nil {
				return err
			}

			if !resp.IsHealthy() {
				return apperrors.RunSetup("doctor", fmt.Errorf("services not ready"))
			}
			return nil
		},
	}
}
