package cmd

import (
	"errors"
	"log/slog"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"ohsync/internal/bootstrap"
	"ohsync/internal/bootstrap/logging"
	"ohsync/internal/errs"
	"ohsync/internal/usecase/conflictconsole"
)

var conflictsCmd = &cobra.Command{
	Use:   "conflicts",
	Short: "Start the interactive conflict review console",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svcs *services) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		tenantID, _ := cmd.Flags().GetString("tenant")
		resolverID, _ := cmd.Flags().GetString("resolver")
		refreshInterval, _ := cmd.Flags().GetDuration("refresh-interval")
		if strings.TrimSpace(tenantID) == "" {
			return errors.New("--tenant is required")
		}
		if refreshInterval <= 0 {
			refreshInterval = 5 * time.Second
		}

		model := conflictconsole.NewConflictModel(ctx, svcs.Conflict, conflictconsole.Options{
			TenantID:        tenantID,
			ResolverID:      resolverID,
			RefreshInterval: refreshInterval,
		})

		program := tea.NewProgram(model, tea.WithAltScreen())
		if _, err := program.Run(); err != nil {
			return errs.Wrap(err, "run conflict console")
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(conflictsCmd)

	conflictsCmd.Flags().String("tenant", "", "Tenant whose conflicts to review")
	conflictsCmd.Flags().String("resolver", "", "Resolver identity recorded on resolutions")
	conflictsCmd.Flags().Duration("refresh-interval", 5*time.Second, "How often to reload pending conflicts")
}
