package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"ohsync/internal/bootstrap"
	"ohsync/internal/bootstrap/logging"
	domainsync "ohsync/internal/domain/sync"
	"ohsync/internal/errs"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Manual sync operations",
}

var syncRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a full inbound sync for one integration",
	Long: "Fetches the integration's external grid and runs it through the merge\n" +
		"engine, exactly as a webhook delivery would. Useful for first syncs and\n" +
		"for recovering after missed notifications.",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App, svcs *services) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		integrationID, _ := cmd.Flags().GetString("id")
		tenantID, _ := cmd.Flags().GetString("tenant")
		if strings.TrimSpace(integrationID) == "" || strings.TrimSpace(tenantID) == "" {
			return errors.New("--id and --tenant are required")
		}

		item, err := svcs.Integrations.Get(ctx, integrationID, tenantID)
		if err != nil {
			return errs.Wrap(err, "look up integration")
		}
		if item.Status != domainsync.StatusConnected {
			return fmt.Errorf("integration %s is %s, not connected", item.ID, item.Status)
		}
		if !item.SyncDirection.AcceptsInbound() {
			return fmt.Errorf("integration %s is outbound only", item.ID)
		}

		logging.Info(ctx, "manual sync started",
			slog.String("integration_id", item.ID),
			slog.String("integration_type", string(item.Type)),
		)
		if err := svcs.Ingest.SyncIntegration(ctx, item); err != nil {
			logging.Error(ctx, "manual sync failed",
				slog.String("integration_id", item.ID),
				slog.Any("err", errs.Loggable(err)),
			)
			return errs.Wrap(err, "sync integration")
		}

		fmt.Fprintf(cmd.OutOrStdout(), "sync finished for integration %s\n", item.ID)
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(syncCmd)
	syncCmd.AddCommand(syncRunCmd)

	syncRunCmd.Flags().String("id", "", "Integration ID")
	syncRunCmd.Flags().String("tenant", "", "Tenant ID owning the integration")
}
