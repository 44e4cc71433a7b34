// Package identity implements the token-validation client for the
// external Identity service. Credentials and accounts live there; this
// backend only ever checks bearer tokens.
package identity

import (
	"context"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/classpulse/classpulse-backend/internal/domain/shared"
)

// ClientConfig contains configuration for the Identity client.
type ClientConfig struct {
	BaseURL string
	Timeout time.Duration
}

// Client validates bearer tokens against the Identity service.
type Client struct {
	http *resty.Client
}

// NewClient creates a new Identity client.
func NewClient(config ClientConfig) *Client {
	return &Client{
		http: resty.New().
			SetBaseURL(config.BaseURL).
			SetTimeout(config.Timeout).
			SetHeader("Accept", "application/json"),
	}
}

type introspectResponse struct {
	Active      bool   `json:"active"`
	PrincipalID string `json:"principal_id"`
}

// Validate introspects the token and returns the principal ID.
func (c *Client) Validate(ctx context.Context, token string) (string, error) {
	var out introspectResponse

	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetResult(&out).
		Post("/api/v1/tokens/introspect")
	if err != nil {
		return "", shared.WrapError("identity", "Validate", shared.ErrExternalService, "introspection failed", err)
	}
	if resp.IsError() || !out.Active {
		return "", shared.NewDomainError("identity", "Validate", shared.ErrUnauthorized, "token rejected")
	}
	return out.PrincipalID, nil
}
