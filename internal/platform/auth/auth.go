// Package auth resolves the identity of the caller for audit
// attribution. Three modes are supported: headers trusts the upstream
// gateway's identity headers, oidc verifies a bearer token against an
// OpenID Connect issuer, and dev pins a fixed identity for local runs.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/confkit-labs/confkit-go/internal/platform/env"
	"github.com/confkit-labs/confkit-go/internal/platform/tenant"
)

type Mode string

const (
	ModeHeaders Mode = "headers"
	ModeOIDC    Mode = "oidc"
	ModeDev     Mode = "dev"
)

var ErrUnauthenticated = errors.New("unauthenticated")

type Identity struct {
	Subject string
	Email   string
}

type Authenticator interface {
	Authenticate(ctx context.Context, r *http.Request) (Identity, error)
}

type Config struct {
	Mode Mode

	EmailClaim string

	OIDCIssuerURL string
	OIDCClientID  string

	DevSubject string
	DevEmail   string
}

func ConfigFromEnv() (Config, error) {
	modeRaw := strings.ToLower(strings.TrimSpace(env.String("AUTH_MODE", string(ModeHeaders))))
	var mode Mode
	switch modeRaw {
	case string(ModeHeaders):
		mode = ModeHeaders
	case string(ModeOIDC):
		mode = ModeOIDC
	case string(ModeDev):
		mode = ModeDev
	default:
		return Config{}, fmt.Errorf("AUTH_MODE must be one of: headers, oidc, dev (got %q)", modeRaw)
	}

	cfg := Config{
		Mode:          mode,
		EmailClaim:    env.String("AUTH_EMAIL_CLAIM", "email"),
		OIDCIssuerURL: env.String("OIDC_ISSUER_URL", ""),
		OIDCClientID:  env.String("OIDC_CLIENT_ID", ""),
		DevSubject:    env.String("DEV_AUTH_SUBJECT", "dev-user"),
		DevEmail:      env.String("DEV_AUTH_EMAIL", "dev-user@example.local"),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.Mode {
	case ModeHeaders:
	case ModeOIDC:
		if strings.TrimSpace(c.OIDCIssuerURL) == "" {
			return errors.New("OIDC_ISSUER_URL is required when AUTH_MODE=oidc")
		}
		if strings.TrimSpace(c.OIDCClientID) == "" {
			return errors.New("OIDC_CLIENT_ID is required when AUTH_MODE=oidc")
		}
	case ModeDev:
		if strings.TrimSpace(c.DevSubject) == "" {
			return errors.New("DEV_AUTH_SUBJECT is required when AUTH_MODE=dev")
		}
	default:
		return fmt.Errorf("unsupported auth mode: %q", c.Mode)
	}
	return nil
}

// NewAuthenticator builds the authenticator for the configured mode.
// The oidc mode performs issuer discovery at startup.
func NewAuthenticator(ctx context.Context, cfg Config) (Authenticator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Mode {
	case ModeOIDC:
		return newOIDCAuthenticator(ctx, cfg)
	case ModeDev:
		return &devAuthenticator{identity: Identity{Subject: cfg.DevSubject, Email: cfg.DevEmail}}, nil
	default:
		return &headersAuthenticator{}, nil
	}
}

// headersAuthenticator takes the acting user from the gateway-supplied
// X-User-Id header. An absent header yields an anonymous identity
// rather than a rejection, so unattributed writes record no user.
type headersAuthenticator struct{}

func (a *headersAuthenticator) Authenticate(ctx context.Context, r *http.Request) (Identity, error) {
	return Identity{Subject: strings.TrimSpace(r.Header.Get(tenant.HeaderUser))}, nil
}

type devAuthenticator struct {
	identity Identity
}

func (a *devAuthenticator) Authenticate(ctx context.Context, r *http.Request) (Identity, error) {
	return a.identity, nil
}
