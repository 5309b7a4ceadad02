package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	fbauth "firebase.google.com/go/v4/auth"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

type fakeVerifier struct{}

func (fakeVerifier) VerifyIDToken(_ context.Context, token string) (*fbauth.Token, error) {
	if token != "good" {
		return nil, errors.New("bad token")
	}
	return &fbauth.Token{UID: "uid-1", Claims: map[string]interface{}{"email": "a@b.c"}}, nil
}

func newRouter(optional bool) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(FirebaseAuthMiddleware(fakeVerifier{}, optional))
	r.GET("/me", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"uid": c.GetString("firebase_uid"), "email": c.GetString("email")})
	})
	return r
}

func TestFirebaseAuthMiddleware(t *testing.T) {
	cases := []struct {
		name     string
		optional bool
		header   string
		status   int
		body     string
	}{
		{"missing header", false, "", http.StatusUnauthorized, ""},
		{"not bearer", false, "Basic abc", http.StatusUnauthorized, ""},
		{"empty bearer", false, "Bearer ", http.StatusUnauthorized, ""},
		{"invalid token", false, "Bearer nope", http.StatusUnauthorized, ""},
		{"valid token", false, "Bearer good", http.StatusOK, `{"uid":"uid-1","email":"a@b.c"}`},
		{"optional without header", true, "", http.StatusOK, `{"uid":"","email":""}`},
		{"optional still rejects bad token", true, "Bearer nope", http.StatusUnauthorized, ""},
		{"optional with valid token", true, "Bearer good", http.StatusOK, `{"uid":"uid-1","email":"a@b.c"}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rr := httptest.NewRecorder()
			newRouter(tc.optional).ServeHTTP(rr, req)

			assert.Equal(t, tc.status, rr.Code)
			if tc.body != "" {
				assert.JSONEq(t, tc.body, rr.Body.String())
			}
		})
	}
}
