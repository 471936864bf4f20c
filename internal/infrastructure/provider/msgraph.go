package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"ohsync/internal/errs"
	"ohsync/internal/ports"
)

var microsoftEndpoint = oauth2.Endpoint{
	AuthURL:  "https://login.microsoftonline.com/common/oauth2/v2.0/authorize",
	TokenURL: "https://login.microsoftonline.com/common/oauth2/v2.0/token",
}

const graphSubscriptionWindow = 72 * time.Hour

// GraphClient serves both Excel variants. externalRef is the Graph
// drive-item resource path relative to the API root, e.g.
// "me/drive/items/ITEM" for OneDrive or "sites/SITE/drive/items/ITEM"
// for SharePoint, so one client covers both without dispatching again.
type GraphClient struct {
	conf       *oauth2.Config
	httpClient *http.Client

	baseURL string
	now     func() time.Time
}

var _ ports.ProviderClient = (*GraphClient)(nil)

func NewGraphClient(clientID, clientSecret, redirectURL string) *GraphClient {
	return &GraphClient{
		conf: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Endpoint:     microsoftEndpoint,
			Scopes: []string{
				"offline_access",
				"Files.ReadWrite.All",
				"Sites.ReadWrite.All",
			},
		},
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    "https://graph.microsoft.com/v1.0",
		now:        time.Now,
	}
}

func (c *GraphClient) AuthCodeURL(state string) string {
	return c.conf.AuthCodeURL(state)
}

func (c *GraphClient) Exchange(ctx context.Context, code string) (ports.Credentials, error) {
	return exchangeCode(ctx, c.conf, code)
}

func (c *GraphClient) Refresh(ctx context.Context, creds ports.Credentials) (ports.Credentials, error) {
	return refreshToken(ctx, c.conf, creds)
}

func (c *GraphClient) FetchGrid(ctx context.Context, creds ports.Credentials, externalRef string) ([][]string, error) {
	endpoint := fmt.Sprintf(
		"%s/%s/workbook/worksheets('Sheet1')/usedRange?$select=text",
		c.baseURL, strings.Trim(externalRef, "/"),
	)

	var payload struct {
		Text [][]string `json:"text"`
	}
	if err := doJSON(ctx, c.httpClient, http.MethodGet, endpoint, creds, nil, &payload); err != nil {
		return nil, errs.Wrap(err, "fetch workbook used range")
	}
	return payload.Text, nil
}

func (c *GraphClient) Subscribe(ctx context.Context, creds ports.Credentials, externalRef, callbackURL string) (ports.Subscription, error) {
	body := map[string]string{
		"changeType":         "updated",
		"notificationUrl":    callbackURL,
		"resource":           "/" + strings.Trim(externalRef, "/"),
		"expirationDateTime": c.now().UTC().Add(graphSubscriptionWindow).Format(time.RFC3339),
		"clientState":        uuid.NewString(),
	}
	var payload struct {
		ID                 string `json:"id"`
		ExpirationDateTime string `json:"expirationDateTime"`
	}
	if err := doJSON(ctx, c.httpClient, http.MethodPost, c.baseURL+"/subscriptions", creds, body, &payload); err != nil {
		return ports.Subscription{}, errs.Wrap(err, "create graph subscription")
	}

	return ports.Subscription{
		ID: payload.ID,
		Metadata: map[string]string{
			"expiration": payload.ExpirationDateTime,
		},
	}, nil
}

func (c *GraphClient) RenewSubscription(ctx context.Context, creds ports.Credentials, subscriptionID string) error {
	endpoint := fmt.Sprintf("%s/subscriptions/%s", c.baseURL, url.PathEscape(subscriptionID))
	body := map[string]string{
		"expirationDateTime": c.now().UTC().Add(graphSubscriptionWindow).Format(time.RFC3339),
	}
	if err := doJSON(ctx, c.httpClient, http.MethodPatch, endpoint, creds, body, nil); err != nil {
		return errs.Wrap(err, "renew graph subscription")
	}
	return nil
}
