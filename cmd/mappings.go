package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	"ohsync/internal/bootstrap"
	"ohsync/internal/bootstrap/logging"
	"ohsync/internal/errs"
	"ohsync/internal/ports"
)

type mappingEntryConfig struct {
	ExternalField string `toml:"external_field"`
	InternalTable string `toml:"internal_table"`
	InternalField string `toml:"internal_field"`
	Transform     string `toml:"transform"`
	RecordKey     bool   `toml:"record_key"`
}

type mappingProfile struct {
	Version  int                  `toml:"version"`
	Mappings []mappingEntryConfig `toml:"mapping"`
}

func loadMappingProfile(mappingFile string) (mappingProfile, error) {
	path := strings.TrimSpace(mappingFile)
	if path == "" {
		return mappingProfile{}, errors.New("mapping file is required")
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return mappingProfile{}, err
	}

	var profile mappingProfile
	if err := toml.Unmarshal(raw, &profile); err != nil {
		return mappingProfile{}, err
	}
	if err := validateMappingProfile(profile); err != nil {
		return mappingProfile{}, err
	}
	return profile, nil
}

func validateMappingProfile(profile mappingProfile) error {
	if profile.Version != 1 {
		return errors.New("unsupported mapping version: expected version = 1")
	}
	if len(profile.Mappings) == 0 {
		return errors.New("mapping file declares no [[mapping]] entries")
	}

	keyCount := 0
	seen := make(map[string]struct{}, len(profile.Mappings))
	for i, entry := range profile.Mappings {
		if strings.TrimSpace(entry.ExternalField) == "" {
			return fmt.Errorf("mapping %d: external_field is required", i+1)
		}
		if strings.TrimSpace(entry.InternalTable) == "" {
			return fmt.Errorf("mapping %d: internal_table is required", i+1)
		}
		if strings.TrimSpace(entry.InternalField) == "" {
			return fmt.Errorf("mapping %d: internal_field is required", i+1)
		}
		if _, dup := seen[entry.ExternalField]; dup {
			return fmt.Errorf("mapping %d: duplicate external_field %q", i+1, entry.ExternalField)
		}
		seen[entry.ExternalField] = struct{}{}
		if entry.RecordKey {
			keyCount++
		}
	}
	if keyCount != 1 {
		return fmt.Errorf("exactly one mapping must set record_key = true, got %d", keyCount)
	}
	return nil
}

var mappingsCmd = &cobra.Command{
	Use:   "mappings",
	Short: "Manage field mappings for an integration",
}

var mappingsImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Replace an integration's field mappings from a TOML file",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App, svcs *services) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		integrationID, _ := cmd.Flags().GetString("integration")
		tenantID, _ := cmd.Flags().GetString("tenant")
		mappingFile, _ := cmd.Flags().GetString("file")
		if strings.TrimSpace(integrationID) == "" || strings.TrimSpace(tenantID) == "" {
			return errors.New("--integration and --tenant are required")
		}

		profile, err := loadMappingProfile(mappingFile)
		if err != nil {
			return errs.Wrap(err, "load mapping file")
		}

		// Ownership check before touching mapping rows.
		if _, err := svcs.Integrations.Get(ctx, integrationID, tenantID); err != nil {
			return errs.Wrap(err, "look up integration")
		}

		mappings := make([]ports.FieldMapping, 0, len(profile.Mappings))
		for i, entry := range profile.Mappings {
			mappings = append(mappings, ports.FieldMapping{
				IntegrationID: integrationID,
				ExternalField: entry.ExternalField,
				InternalTable: entry.InternalTable,
				InternalField: entry.InternalField,
				Transform:     entry.Transform,
				RecordKey:     entry.RecordKey,
				Position:      i,
			})
		}

		if err := svcs.Mappings.ReplaceForIntegration(ctx, integrationID, mappings); err != nil {
			logging.Error(ctx, "replace mappings failed",
				slog.String("integration_id", integrationID),
				slog.Any("err", errs.Loggable(err)),
			)
			return errs.Wrap(err, "replace mappings")
		}

		if err := svcs.Audit.Emit(ctx, ports.AuditEvent{
			TenantID: tenantID,
			Action:   ports.AuditMappingsReplaced,
			Actor:    ports.ActorUser,
			Metadata: map[string]any{
				"integration_id": integrationID,
				"mapping_count":  len(mappings),
			},
			CreatedAt: time.Now().UTC().Format(time.RFC3339),
		}); err != nil {
			return errs.Wrap(err, "record mapping replacement")
		}

		logging.Info(ctx, "mappings replaced",
			slog.String("integration_id", integrationID),
			slog.Int("mapping_count", len(mappings)),
		)
		fmt.Fprintf(cmd.OutOrStdout(), "replaced %d mappings for integration %s\n", len(mappings), integrationID)
		return nil
	}),
}

var mappingsListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print an integration's field mappings",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App, svcs *services) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		integrationID, _ := cmd.Flags().GetString("integration")
		tenantID, _ := cmd.Flags().GetString("tenant")
		if strings.TrimSpace(integrationID) == "" || strings.TrimSpace(tenantID) == "" {
			return errors.New("--integration and --tenant are required")
		}

		if _, err := svcs.Integrations.Get(ctx, integrationID, tenantID); err != nil {
			return errs.Wrap(err, "look up integration")
		}

		mappings, err := svcs.Mappings.ListByIntegration(ctx, integrationID)
		if err != nil {
			return errs.Wrap(err, "list mappings")
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "POS\tEXTERNAL FIELD\tINTERNAL\tTRANSFORM\tKEY")
		for _, m := range mappings {
			key := ""
			if m.RecordKey {
				key = "yes"
			}
			fmt.Fprintf(tw, "%d\t%s\t%s.%s\t%s\t%s\n",
				m.Position, m.ExternalField, m.InternalTable, m.InternalField, m.Transform, key)
		}
		return tw.Flush()
	}),
}

func init() {
	rootCmd.AddCommand(mappingsCmd)
	mappingsCmd.AddCommand(mappingsImportCmd)
	mappingsCmd.AddCommand(mappingsListCmd)

	for _, c := range []*cobra.Command{mappingsImportCmd, mappingsListCmd} {
		c.Flags().String("integration", "", "Integration ID")
		c.Flags().String("tenant", "", "Tenant ID owning the integration")
	}
	mappingsImportCmd.Flags().String("file", "", "Path to the TOML mapping file")
}
