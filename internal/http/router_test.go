package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpH "github.com/yungbote/labtwin-backend/internal/http/handlers"
	httpMW "github.com/yungbote/labtwin-backend/internal/http/middleware"
	"github.com/yungbote/labtwin-backend/internal/inference/router"
	"github.com/yungbote/labtwin-backend/internal/observability"
	"github.com/yungbote/labtwin-backend/internal/platform/logger"
)

const secret = "router-secret"

type okStatus struct{}

func (okStatus) Status(context.Context) router.Status { return router.Status{} }

func token(t *testing.T, role string) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, httpMW.Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func testRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	log := logger.Nop()
	return NewRouter(RouterConfig{
		Log:            log,
		Metrics:        observability.NewMetrics(prometheus.NewRegistry()),
		AuthMiddleware: httpMW.NewAuthMiddleware(log, secret),
		AIHandler:      httpH.NewAIHandler(log, nil, nil, okStatus{}),
		TwinHandler:    httpH.NewTwinHandler(log, nil),
		HealthHandler:  httpH.NewHealthHandler(nil),
	})
}

func TestRouterRoleGates(t *testing.T) {
	r := testRouter()
	cases := []struct {
		method, path, role string
		want               int
	}{
		{http.MethodGet, "/api/ai/status", "", http.StatusUnauthorized},
		{http.MethodGet, "/api/ai/status", "student", http.StatusOK},
		{http.MethodGet, "/api/ai/status", "instructor", http.StatusOK},
		{http.MethodPost, "/api/ai/hint", "instructor", http.StatusForbidden},
		{http.MethodGet, "/api/ai/usage", "student", http.StatusForbidden},
		{http.MethodGet, "/api/twin/students/" + uuid.NewString(), "student", http.StatusForbidden},
		{http.MethodGet, "/api/twin/me", "instructor", http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.method+" "+tc.path+" as "+tc.role, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, nil)
			if tc.role != "" {
				req.Header.Set("Authorization", "Bearer "+token(t, tc.role))
			}
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)
			assert.Equal(t, tc.want, rec.Code)
		})
	}
}

func TestRouterPublicEndpoints(t *testing.T) {
	r := testRouter()

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthcheck", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "labtwin_")
}
