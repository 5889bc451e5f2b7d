// Package identity implements the upstream identity-provider exchange that
// Token Session (C9) login depends on: trading a platform auth code for the
// unionid/openid/phone triple spec.md §4.9 reconciles into an Account.
// Grounded on the teacher's mdz CLI OAuth client (internal/rest/auth.go's
// form-POST-then-decode shape), adapted from an OAuth2 access-token request
// to this platform's code-exchange response shape.
package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/creatorplatform/gateway-core/pkg"
	"github.com/creatorplatform/gateway-core/pkg/constant"
)

// Claims is the identity triple resolved from a platform login. At least one
// field is always populated by a successful Exchange.
type Claims struct {
	UnionID string
	OpenID  string
	Phone   string
}

// Provider exchanges a platform auth code for identity claims.
type Provider interface {
	Exchange(ctx context.Context, platformCode string) (Claims, error)
}

// Config configures the HTTP provider.
type Config struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	Timeout      time.Duration
}

// HTTPProvider implements Provider against an OAuth2-shaped identity
// provider endpoint.
type HTTPProvider struct {
	cfg    Config
	client *http.Client
}

// NewHTTPProvider returns an HTTPProvider.
func NewHTTPProvider(cfg Config) *HTTPProvider {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &HTTPProvider{cfg: cfg, client: &http.Client{Timeout: timeout}}
}

type exchangeResponse struct {
	UnionID string `json:"unionid"`
	OpenID  string `json:"openid"`
	Phone   string `json:"phone"`
}

// Exchange implements Provider.
func (p *HTTPProvider) Exchange(ctx context.Context, platformCode string) (Claims, error) {
	data := url.Values{}
	data.Set("grant_type", "authorization_code")
	data.Set("client_id", p.cfg.ClientID)
	data.Set("client_secret", p.cfg.ClientSecret)
	data.Set("code", platformCode)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+"/oauth/identity", bytes.NewBufferString(data.Encode()))
	if err != nil {
		return Claims{}, err
	}

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.client.Do(req)
	if err != nil {
		return Claims{}, pkg.TransientError{Code: constant.ErrIdentityFailed, Message: "identity provider unreachable", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Claims{}, err
	}

	if resp.StatusCode != http.StatusOK {
		return Claims{}, pkg.UnauthorizedError{Code: constant.ErrIdentityFailed, Message: fmt.Sprintf("identity provider status %d", resp.StatusCode)}
	}

	var parsed exchangeResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return Claims{}, pkg.UnauthorizedError{Code: constant.ErrIdentityFailed, Message: "malformed identity provider response"}
	}

	if parsed.UnionID == "" && parsed.OpenID == "" && parsed.Phone == "" {
		return Claims{}, pkg.UnauthorizedError{Code: constant.ErrIdentityFailed, Message: "identity provider returned no identifiers"}
	}

	return Claims{UnionID: parsed.UnionID, OpenID: parsed.OpenID, Phone: parsed.Phone}, nil
}
