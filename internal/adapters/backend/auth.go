package backend

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// AuthConfig holds OAuth2 client-credentials settings for the backend.
type AuthConfig struct {
	ClientID     string
	ClientSecret string
	// TokenURL wins over Issuer.
	TokenURL string
	// Issuer is used for OIDC discovery of the token endpoint.
	Issuer string
	Scopes []string
}

// NewTokenSource builds a caching token source. When only an issuer is
// configured the token endpoint is discovered from its OIDC metadata.
func NewTokenSource(ctx context.Context, cfg AuthConfig, hc *http.Client) (oauth2.TokenSource, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, errors.New("client id and secret are required")
	}
	if hc != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, hc)
	}

	tokenURL := strings.TrimSpace(cfg.TokenURL)
	if tokenURL == "" {
		issuer := strings.TrimSuffix(strings.TrimSpace(cfg.Issuer), "/")
		issuer = strings.TrimSuffix(issuer, "/.well-known/openid-configuration")
		if issuer == "" {
			return nil, errors.New("token url or issuer is required")
		}
		provider, err := gooidc.NewProvider(ctx, issuer)
		if err != nil {
			return nil, fmt.Errorf("oidc discovery: %w", err)
		}
		tokenURL = provider.Endpoint().TokenURL
		if tokenURL == "" {
			return nil, fmt.Errorf("issuer %s advertises no token endpoint", issuer)
		}
	}

	cc := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     tokenURL,
		Scopes:       cfg.Scopes,
	}
	return cc.TokenSource(ctx), nil
}
