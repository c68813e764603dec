package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"blocklytics/portal/pkg/ctxkeys"
)

var testSecret = []byte("test-secret")

func TestGenerateAndValidateJWT(t *testing.T) {
	token, err := GenerateJWT("user-1", "user@example.com", time.Hour, testSecret)
	if err != nil {
		t.Fatalf("GenerateJWT failed: %v", err)
	}

	claims, err := ValidateJWT(token, testSecret)
	if err != nil {
		t.Fatalf("ValidateJWT failed: %v", err)
	}
	if claims.UserID != "user-1" {
		t.Errorf("expected user-1, got %s", claims.UserID)
	}
	if claims.Email != "user@example.com" {
		t.Errorf("expected email, got %s", claims.Email)
	}
}

func TestValidateJWTWrongSecret(t *testing.T) {
	token, err := GenerateJWT("user-1", "user@example.com", time.Hour, testSecret)
	if err != nil {
		t.Fatalf("GenerateJWT failed: %v", err)
	}

	if _, err := ValidateJWT(token, []byte("other-secret")); err != ErrInvalidJWT {
		t.Errorf("expected ErrInvalidJWT, got %v", err)
	}
}

func TestValidateJWTExpired(t *testing.T) {
	token, err := GenerateJWT("user-1", "user@example.com", -time.Minute, testSecret)
	if err != nil {
		t.Fatalf("GenerateJWT failed: %v", err)
	}

	if _, err := ValidateJWT(token, testSecret); err != ErrExpiredJWT {
		t.Errorf("expected ErrExpiredJWT, got %v", err)
	}
}

func TestTokenExpiry(t *testing.T) {
	token, err := GenerateJWT("user-1", "user@example.com", time.Hour, testSecret)
	if err != nil {
		t.Fatalf("GenerateJWT failed: %v", err)
	}

	expiry, err := TokenExpiry(token)
	if err != nil {
		t.Fatalf("TokenExpiry failed: %v", err)
	}
	if until := time.Until(expiry); until < 59*time.Minute || until > time.Hour {
		t.Errorf("unexpected expiry %v", expiry)
	}
}

func TestTokenExpiryExpiredToken(t *testing.T) {
	token, err := GenerateJWT("user-1", "user@example.com", -time.Minute, testSecret)
	if err != nil {
		t.Fatalf("GenerateJWT failed: %v", err)
	}

	if _, err := TokenExpiry(token); err != ErrExpiredJWT {
		t.Errorf("expected ErrExpiredJWT, got %v", err)
	}
}

func TestTokenExpiryGarbledToken(t *testing.T) {
	if _, err := TokenExpiry("not.a.jwt"); err != ErrInvalidJWT {
		t.Errorf("expected ErrInvalidJWT, got %v", err)
	}
}

func TestInspectJWTDoesNotVerifySignature(t *testing.T) {
	// Token signed with a secret the portal never sees.
	token, err := GenerateJWT("user-1", "user@example.com", time.Hour, []byte("upstream-secret"))
	if err != nil {
		t.Fatalf("GenerateJWT failed: %v", err)
	}

	claims, err := InspectJWT(token)
	if err != nil {
		t.Fatalf("InspectJWT failed: %v", err)
	}
	if claims.UserID != "user-1" {
		t.Errorf("expected user-1, got %s", claims.UserID)
	}
}

func TestExtractBearerToken(t *testing.T) {
	if _, err := ExtractBearerToken(""); err != ErrUnauthenticated {
		t.Errorf("expected ErrUnauthenticated, got %v", err)
	}
	if _, err := ExtractBearerToken("Basic abc"); err != ErrInvalidJWT {
		t.Errorf("expected ErrInvalidJWT, got %v", err)
	}
	token, err := ExtractBearerToken("Bearer abc")
	if err != nil || token != "abc" {
		t.Errorf("expected abc, got %q (%v)", token, err)
	}
}

func setupAuthRouter(secret []byte) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(SessionAuthMiddleware(secret))
	router.GET("/protected", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"user_id": c.GetString(string(ctxkeys.KeyUserID)),
			"email":   c.GetString(string(ctxkeys.KeyEmail)),
		})
	})
	return router
}

func TestSessionAuthMiddleware(t *testing.T) {
	router := setupAuthRouter(nil)

	token, err := GenerateJWT("user-1", "user@example.com", time.Hour, []byte("upstream-secret"))
	if err != nil {
		t.Fatalf("GenerateJWT failed: %v", err)
	}

	tests := []struct {
		name       string
		authHeader string
		wantStatus int
	}{
		{"no header", "", http.StatusUnauthorized},
		{"malformed header", "Token abc", http.StatusUnauthorized},
		{"garbled token", "Bearer not.a.jwt", http.StatusUnauthorized},
		{"valid token", "Bearer " + token, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("expected %d, got %d (%s)", tt.wantStatus, w.Code, w.Body.String())
			}
		})
	}
}

func TestSessionAuthMiddlewareRejectsExpired(t *testing.T) {
	router := setupAuthRouter(nil)

	token, err := GenerateJWT("user-1", "user@example.com", -time.Minute, []byte("upstream-secret"))
	if err != nil {
		t.Fatalf("GenerateJWT failed: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestSessionAuthMiddlewareWithSecret(t *testing.T) {
	router := setupAuthRouter(testSecret)

	good, _ := GenerateJWT("user-1", "user@example.com", time.Hour, testSecret)
	forged, _ := GenerateJWT("user-1", "user@example.com", time.Hour, []byte("other-secret"))

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+good)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("expected 200 for signed token, got %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+forged)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 for forged token, got %d", w.Code)
	}
}
