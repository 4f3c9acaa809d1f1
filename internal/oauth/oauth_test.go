package oauth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/chartflow/import-server/internal/appconfig"
	"github.com/golang-jwt/jwt/v5"
)

func signHS256(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatal(err)
	}
	return token
}

func TestLocalValidator(t *testing.T) {
	ctx := context.Background()
	v := &LocalValidator{SigningSecret: []byte("local-dev-secret")}

	good := signHS256(t, "local-dev-secret", jwt.MapClaims{
		"sub": "drw",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	if err := v.ValidateToken(ctx, good); err != nil {
		t.Fatalf("valid token rejected: %v", err)
	}

	wrongKey := signHS256(t, "some-other-secret", jwt.MapClaims{
		"sub": "drw",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	var verr *TokenVerificationError
	if err := v.ValidateToken(ctx, wrongKey); !errors.As(err, &verr) {
		t.Fatalf("wrong key should fail verification, got %v", err)
	}

	expired := signHS256(t, "local-dev-secret", jwt.MapClaims{
		"sub": "drw",
		"exp": time.Now().Add(-time.Hour).Unix(),
	})
	if err := v.ValidateToken(ctx, expired); !errors.As(err, &verr) {
		t.Fatalf("expired token should fail verification, got %v", err)
	}

	if err := v.ValidateToken(ctx, "not-a-jwt"); !errors.As(err, &verr) {
		t.Fatalf("garbage should fail verification, got %v", err)
	}
}

func TestHasRequiredScopes(t *testing.T) {
	cases := []struct {
		name     string
		granted  string
		required string
		want     bool
	}{
		{"exact match", "import:read import:write", "import:read import:write", true},
		{"superset granted", "import:read import:write admin", "import:read", true},
		{"missing one", "import:read", "import:read import:write", false},
		{"nothing granted", "", "import:read", false},
		{"nothing required", "import:read", "", true},
		{"both empty", "", "", true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := hasRequiredScopes(c.granted, c.required); got != c.want {
				t.Errorf("hasRequiredScopes(%q, %q) = %v, want %v", c.granted, c.required, got, c.want)
			}
		})
	}
}

func TestNewValidatorSelection(t *testing.T) {
	ctx := context.Background()

	v, err := NewValidator(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := v.(*PassthroughValidator); !ok {
		t.Fatalf("nil config should yield passthrough, got %T", v)
	}

	v, err = NewValidator(ctx, &appconfig.OauthConfig{AuthEnabled: false})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := v.(*PassthroughValidator); !ok {
		t.Fatalf("disabled auth should yield passthrough, got %T", v)
	}

	v, err = NewValidator(ctx, &appconfig.OauthConfig{AuthEnabled: true, SigningSecret: "local-dev-secret"})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := v.(*LocalValidator); !ok {
		t.Fatalf("secret-only config should yield local validator, got %T", v)
	}

	if _, err := NewValidator(ctx, &appconfig.OauthConfig{AuthEnabled: true}); err == nil {
		t.Fatal("auth enabled with no issuer and no secret must error")
	}
}
