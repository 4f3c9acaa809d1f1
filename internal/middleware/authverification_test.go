package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/chartflow/import-server/internal/oauth"
)

type stubValidator struct {
	err error
}

func (v *stubValidator) ValidateToken(_ context.Context, _ string) error {
	return v.err
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func doRequest(t *testing.T, m *AuthMiddleware, authHeader string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/batches", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	m.VerifyTokenMiddleware(okHandler()).ServeHTTP(rec, req)
	return rec
}

func TestVerifyTokenMiddlewareDisabled(t *testing.T) {
	m := &AuthMiddleware{AuthEnabled: false}
	if rec := doRequest(t, m, ""); rec.Code != http.StatusOK {
		t.Fatalf("disabled auth should pass through, got %d", rec.Code)
	}
}

func TestVerifyTokenMiddleware(t *testing.T) {
	token := "Bearer aaa.bbb.ccc"
	cases := []struct {
		name   string
		header string
		err    error
		want   int
	}{
		{"valid token", token, nil, http.StatusOK},
		{"missing header", "", nil, http.StatusUnauthorized},
		{"not a bearer token", "Basic dXNlcjpwYXNz", nil, http.StatusUnauthorized},
		{"malformed jwt", "Bearer notajwt", nil, http.StatusUnauthorized},
		{"verification failure", token, &oauth.TokenVerificationError{}, http.StatusUnauthorized},
		{"missing scopes", token, &oauth.MissingScopesError{Required: "import:write"}, http.StatusForbidden},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			m := &AuthMiddleware{AuthEnabled: true, Validator: &stubValidator{err: c.err}}
			if rec := doRequest(t, m, c.header); rec.Code != c.want {
				t.Errorf("status = %d, want %d", rec.Code, c.want)
			}
		})
	}
}
