package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func newProtected(secret string) http.Handler {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	return NewSharedSecret("X-Admin-Secret", secret)(ok)
}

func TestSharedSecretAllowsExactMatch(t *testing.T) {
	h := newProtected("s3cret")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/expiry/scan", nil)
	req.Header.Set("X-Admin-Secret", "s3cret")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
}

func TestSharedSecretRejectsMissingAndWrong(t *testing.T) {
	h := newProtected("s3cret")
	for _, secret := range []string{"", "wrong", "S3CRET"} {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/expiry/scan", nil)
		if secret != "" {
			req.Header.Set("X-Admin-Secret", secret)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("secret %q: expected 401, got %d", secret, rec.Code)
		}
	}
}

func TestSharedSecretLocksOutWhenUnconfigured(t *testing.T) {
	h := newProtected("")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/expiry/scan", nil)
	req.Header.Set("X-Admin-Secret", "")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}
