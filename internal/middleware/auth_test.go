package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"perfbot/internal/logger"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestRouter(am *AuthMiddleware) *gin.Engine {
	r := gin.New()
	r.Use(RequestLogger(logger.Nop()))
	r.GET("/me", am.RequireAuth(), func(c *gin.Context) {
		c.String(http.StatusOK, UserID(c))
	})
	return r
}

func signToken(t *testing.T, secret, issuer, subject string, ttl time.Duration) string {
	t.Helper()
	now := time.Now()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("SignedString() error = %v", err)
	}
	return signed
}

func TestRequireAuth(t *testing.T) {
	am := NewAuthMiddleware("test-secret", "perfbot", logger.Nop())
	valid := signToken(t, "test-secret", "perfbot", "user-42", time.Hour)
	expired := signToken(t, "test-secret", "perfbot", "user-42", -time.Minute)
	otherSecret := signToken(t, "another-secret", "perfbot", "user-42", time.Hour)
	otherIssuer := signToken(t, "test-secret", "someone-else", "user-42", time.Hour)
	noSubject := signToken(t, "test-secret", "perfbot", "", time.Hour)

	noneAlg, _ := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Subject:   "user-42",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)

	tests := []struct {
		name     string
		header   string
		wantCode int
		wantBody string
	}{
		{name: "valid token", header: "Bearer " + valid, wantCode: http.StatusOK, wantBody: "user-42"},
		{name: "lowercase scheme", header: "bearer " + valid, wantCode: http.StatusOK, wantBody: "user-42"},
		{name: "missing header", header: "", wantCode: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic abc", wantCode: http.StatusUnauthorized},
		{name: "expired", header: "Bearer " + expired, wantCode: http.StatusUnauthorized},
		{name: "wrong secret", header: "Bearer " + otherSecret, wantCode: http.StatusUnauthorized},
		{name: "wrong issuer", header: "Bearer " + otherIssuer, wantCode: http.StatusUnauthorized},
		{name: "none algorithm", header: "Bearer " + noneAlg, wantCode: http.StatusUnauthorized},
		{name: "no subject", header: "Bearer " + noSubject, wantCode: http.StatusUnauthorized},
	}

	r := newTestRouter(am)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d (body %s)", w.Code, tt.wantCode, w.Body.String())
			}
			if tt.wantBody != "" && w.Body.String() != tt.wantBody {
				t.Errorf("body = %q, want %q", w.Body.String(), tt.wantBody)
			}
		})
	}
}
