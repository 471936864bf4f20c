package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"ohsync/internal/errs"
	"ohsync/internal/ports"
)

var googleEndpoint = oauth2.Endpoint{
	AuthURL:  "https://accounts.google.com/o/oauth2/v2/auth",
	TokenURL: "https://oauth2.googleapis.com/token",
}

// GoogleClient talks to the Sheets values API for cell data and the Drive
// changes API for push channels. externalRef is the spreadsheet id.
type GoogleClient struct {
	conf       *oauth2.Config
	httpClient *http.Client

	sheetsBaseURL string
	driveBaseURL  string
}

var _ ports.ProviderClient = (*GoogleClient)(nil)

func NewGoogleClient(clientID, clientSecret, redirectURL string) *GoogleClient {
	return &GoogleClient{
		conf: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Endpoint:     googleEndpoint,
			Scopes: []string{
				"https://www.googleapis.com/auth/spreadsheets",
				"https://www.googleapis.com/auth/drive.readonly",
			},
		},
		httpClient:    &http.Client{Timeout: 30 * time.Second},
		sheetsBaseURL: "https://sheets.googleapis.com",
		driveBaseURL:  "https://www.googleapis.com",
	}
}

func (c *GoogleClient) AuthCodeURL(state string) string {
	// offline + consent so a refresh token is issued on every connect, not
	// only the first grant for the account.
	return c.conf.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

func (c *GoogleClient) Exchange(ctx context.Context, code string) (ports.Credentials, error) {
	return exchangeCode(ctx, c.conf, code)
}

func (c *GoogleClient) Refresh(ctx context.Context, creds ports.Credentials) (ports.Credentials, error) {
	return refreshToken(ctx, c.conf, creds)
}

func (c *GoogleClient) FetchGrid(ctx context.Context, creds ports.Credentials, externalRef string) ([][]string, error) {
	endpoint := fmt.Sprintf(
		"%s/v4/spreadsheets/%s/values/A1:ZZ?majorDimension=ROWS&valueRenderOption=FORMATTED_VALUE",
		c.sheetsBaseURL, url.PathEscape(externalRef),
	)

	var payload struct {
		Values [][]string `json:"values"`
	}
	if err := doJSON(ctx, c.httpClient, http.MethodGet, endpoint, creds, nil, &payload); err != nil {
		return nil, errs.Wrap(err, "fetch sheet values")
	}
	return payload.Values, nil
}

func (c *GoogleClient) Subscribe(ctx context.Context, creds ports.Credentials, externalRef, callbackURL string) (ports.Subscription, error) {
	endpoint := fmt.Sprintf("%s/drive/v3/files/%s/watch", c.driveBaseURL, url.PathEscape(externalRef))

	body := map[string]string{
		"id":      uuid.NewString(),
		"type":    "web_hook",
		"address": callbackURL,
	}
	var payload struct {
		ID         string `json:"id"`
		ResourceID string `json:"resourceId"`
		Expiration string `json:"expiration"`
	}
	if err := doJSON(ctx, c.httpClient, http.MethodPost, endpoint, creds, body, &payload); err != nil {
		return ports.Subscription{}, errs.Wrap(err, "register drive watch channel")
	}

	return ports.Subscription{
		ID: payload.ID,
		Metadata: map[string]string{
			"resource_id": payload.ResourceID,
			"expiration":  payload.Expiration,
		},
	}, nil
}

func (c *GoogleClient) RenewSubscription(_ context.Context, _ ports.Credentials, _ string) error {
	// Drive channels cannot be extended; they are replaced when a webhook
	// delivery reports the channel near expiry.
	return nil
}
