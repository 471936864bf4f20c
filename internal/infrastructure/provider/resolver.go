package provider

import (
	"fmt"
	"strings"

	"ohsync/internal/bootstrap/config"
	domainsync "ohsync/internal/domain/sync"
	"ohsync/internal/ports"
)

// Resolver dispatches on the closed integration-type enum. An unknown type
// is a programming error surfaced as an error value, never a nil client.
type Resolver struct {
	google   ports.ProviderClient
	graph    ports.ProviderClient
	dynamics ports.ProviderClient
}

var _ ports.ProviderResolver = (*Resolver)(nil)

func NewResolver(cfg config.Config) *Resolver {
	base := strings.TrimRight(cfg.HTTP.BaseURL, "/")
	redirect := func(p domainsync.Provider) string {
		return fmt.Sprintf("%s/integrations/oauth/%s/callback", base, p)
	}

	return &Resolver{
		google: NewGoogleClient(
			cfg.Providers.Google.ClientID,
			cfg.Providers.Google.ClientSecret,
			redirect(domainsync.ProviderGoogle),
		),
		graph: NewGraphClient(
			cfg.Providers.Microsoft.ClientID,
			cfg.Providers.Microsoft.ClientSecret,
			redirect(domainsync.ProviderMicrosoft),
		),
		dynamics: NewDynamicsClient(
			cfg.Providers.Dynamics.ClientID,
			cfg.Providers.Dynamics.ClientSecret,
			redirect(domainsync.ProviderDynamics),
			cfg.Providers.DynamicsResource,
		),
	}
}

func (r *Resolver) ForType(t domainsync.IntegrationType) (ports.ProviderClient, error) {
	switch t {
	case domainsync.TypeGoogleSheets:
		return r.google, nil
	case domainsync.TypeExcelOneDrive, domainsync.TypeExcelSharePoint:
		return r.graph, nil
	case domainsync.TypeDynamics365:
		return r.dynamics, nil
	default:
		return nil, fmt.Errorf("no provider client for integration type %q", t)
	}
}
