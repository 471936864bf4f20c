package provider

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"ohsync/internal/errs"
	"ohsync/internal/ports"
)

// DynamicsClient reads a Dataverse entity set through the Web API and
// flattens the records into a header-first grid so the sync engine sees the
// same shape as a spreadsheet. externalRef is the entity set name, e.g.
// "contacts".
type DynamicsClient struct {
	conf       *oauth2.Config
	httpClient *http.Client

	resourceURL string
}

var _ ports.ProviderClient = (*DynamicsClient)(nil)

func NewDynamicsClient(clientID, clientSecret, redirectURL, resourceURL string) *DynamicsClient {
	resourceURL = strings.TrimRight(resourceURL, "/")
	return &DynamicsClient{
		conf: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Endpoint:     microsoftEndpoint,
			Scopes: []string{
				"offline_access",
				resourceURL + "/user_impersonation",
			},
		},
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		resourceURL: resourceURL,
	}
}

func (c *DynamicsClient) AuthCodeURL(state string) string {
	return c.conf.AuthCodeURL(state)
}

func (c *DynamicsClient) Exchange(ctx context.Context, code string) (ports.Credentials, error) {
	return exchangeCode(ctx, c.conf, code)
}

func (c *DynamicsClient) Refresh(ctx context.Context, creds ports.Credentials) (ports.Credentials, error) {
	return refreshToken(ctx, c.conf, creds)
}

func (c *DynamicsClient) FetchGrid(ctx context.Context, creds ports.Credentials, externalRef string) ([][]string, error) {
	endpoint := fmt.Sprintf("%s/api/data/v9.2/%s", c.resourceURL, strings.Trim(externalRef, "/"))

	var payload struct {
		Value []map[string]any `json:"value"`
	}
	if err := doJSON(ctx, c.httpClient, http.MethodGet, endpoint, creds, nil, &payload); err != nil {
		return nil, errs.Wrap(err, "fetch entity set")
	}
	return flattenRecords(payload.Value), nil
}

// Subscribe issues the webhook identity for a Dataverse service endpoint.
// The endpoint itself is registered out of band by the tenant admin; the
// notification payload must echo this id so routing can find the row.
func (c *DynamicsClient) Subscribe(_ context.Context, _ ports.Credentials, externalRef, callbackURL string) (ports.Subscription, error) {
	return ports.Subscription{
		ID: uuid.NewString(),
		Metadata: map[string]string{
			"entity_set":   externalRef,
			"callback_url": callbackURL,
		},
	}, nil
}

func (c *DynamicsClient) RenewSubscription(_ context.Context, _ ports.Credentials, _ string) error {
	// Service endpoints do not expire.
	return nil
}

// flattenRecords turns entity records into a grid: the header row is the
// sorted union of attribute names across all records, OData annotations and
// internal lookup columns dropped.
func flattenRecords(records []map[string]any) [][]string {
	if len(records) == 0 {
		return nil
	}

	seen := map[string]bool{}
	var headers []string
	for _, record := range records {
		for key := range record {
			if strings.Contains(key, "@") || strings.HasPrefix(key, "_") {
				continue
			}
			if !seen[key] {
				seen[key] = true
				headers = append(headers, key)
			}
		}
	}
	sort.Strings(headers)

	grid := make([][]string, 0, len(records)+1)
	grid = append(grid, headers)
	for _, record := range records {
		row := make([]string, len(headers))
		for i, header := range headers {
			row[i] = formatAttribute(record[header])
		}
		grid = append(grid, row)
	}
	return grid
}

func formatAttribute(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case float64:
		// JSON numbers decode as float64; render integers without a
		// fractional part so ids and counts survive round trips.
		if v == float64(int64(v)) {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", v)
	}
}
