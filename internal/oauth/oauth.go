package oauth

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"strings"

	"github.com/chartflow/import-server/internal/appconfig"
	"github.com/chartflow/import-server/pkg/sloger"
	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"
)

var logger *slog.Logger

func init() {
	type Empty struct{}
	pkgParts := strings.Split(reflect.TypeOf(Empty{}).PkgPath(), "/")
	// add package name to app logger
	logger = sloger.With("pkg", pkgParts[len(pkgParts)-1])
}

// Validator checks a bearer token and reports whether the caller may use the
// API. Implementations are chosen at startup from the oauth configuration.
type Validator interface {
	ValidateToken(ctx context.Context, token string) error
}

// PassthroughValidator accepts every token. Used when auth is disabled.
type PassthroughValidator struct{}

func (v *PassthroughValidator) ValidateToken(_ context.Context, _ string) error {
	return nil
}

// OIDCValidator verifies JWTs against the configured issuer's published keys
// and enforces the configured scopes.
type OIDCValidator struct {
	IssuerURL      string
	RequiredScopes string

	verifier *oidc.IDTokenVerifier
}

func NewOIDCValidator(ctx context.Context, c *appconfig.OauthConfig) (*OIDCValidator, error) {
	provider, err := oidc.NewProvider(ctx, c.IssuerUrl)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to oauth token issuer %s: %w", c.IssuerUrl, err)
	}
	return &OIDCValidator{
		IssuerURL:      c.IssuerUrl,
		RequiredScopes: c.RequiredScopes,
		verifier:       provider.Verifier(&oidc.Config{SkipClientIDCheck: true}),
	}, nil
}

func (v *OIDCValidator) ValidateToken(ctx context.Context, token string) error {
	idToken, err := v.verifier.Verify(ctx, token)
	if err != nil {
		return &TokenVerificationError{Inner: err}
	}

	if v.RequiredScopes != "" {
		var claims struct {
			Scope string `json:"scope"`
		}
		if err := idToken.Claims(&claims); err != nil {
			return fmt.Errorf("failed to parse token claims: %w", err)
		}
		if !hasRequiredScopes(claims.Scope, v.RequiredScopes) {
			return &MissingScopesError{Required: v.RequiredScopes}
		}
	}
	return nil
}

// LocalValidator verifies HS256 tokens signed with a shared secret. Intended
// for local runs where no issuer is reachable.
type LocalValidator struct {
	SigningSecret []byte
}

func (v *LocalValidator) ValidateToken(_ context.Context, token string) error {
	_, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.SigningSecret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return &TokenVerificationError{Inner: err}
	}
	return nil
}

// hasRequiredScopes checks that every space-delimited required scope appears
// in the token's scope claim.
func hasRequiredScopes(tokenScopes string, requiredScopes string) bool {
	granted := strings.Fields(tokenScopes)
	for _, req := range strings.Fields(requiredScopes) {
		found := false
		for _, g := range granted {
			if g == req {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// NewValidator picks the validator implementation for the given oauth config.
func NewValidator(ctx context.Context, c *appconfig.OauthConfig) (Validator, error) {
	if c == nil || !c.AuthEnabled {
		return &PassthroughValidator{}, nil
	}
	if c.IssuerUrl != "" {
		return NewOIDCValidator(ctx, c)
	}
	if c.SigningSecret != "" {
		logger.Warn("oauth issuer not set; validating tokens with shared signing secret")
		return &LocalValidator{SigningSecret: []byte(c.SigningSecret)}, nil
	}
	return nil, fmt.Errorf("auth enabled but neither issuer url nor signing secret configured")
}
