package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/yungbote/labtwin-backend/internal/http/response"
	"github.com/yungbote/labtwin-backend/internal/platform/apierr"
	"github.com/yungbote/labtwin-backend/internal/platform/ctxutil"
	"github.com/yungbote/labtwin-backend/internal/platform/logger"
)

// Claims is the bearer token issued by the platform's auth service. Subject
// carries the user id.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

type AuthMiddleware struct {
	log    *logger.Logger
	secret []byte
}

func NewAuthMiddleware(log *logger.Logger, secret string) *AuthMiddleware {
	return &AuthMiddleware{log: log.With("Middleware", "AuthMiddleware"), secret: []byte(secret)}
}

func (am *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := extractTokenFromAll(c)
		if tokenString == "" {
			response.RespondError(c, http.StatusUnauthorized, apierr.CodeUnauthenticated, errors.New("missing or invalid token"))
			c.Abort()
			return
		}
		rd, err := am.parse(tokenString)
		if err != nil {
			am.log.Debug("Rejected token", "error", err)
			response.RespondError(c, http.StatusUnauthorized, apierr.CodeUnauthenticated, errors.New("missing or invalid token"))
			c.Abort()
			return
		}
		c.Request = c.Request.WithContext(ctxutil.WithRequestData(c.Request.Context(), rd))
		c.Next()
	}
}

// RequireRole admits only callers whose token role is one of roles. It
// must run after RequireAuth.
func (am *AuthMiddleware) RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		rd := ctxutil.GetRequestData(c.Request.Context())
		if rd == nil || rd.UserID == uuid.Nil {
			response.RespondError(c, http.StatusUnauthorized, apierr.CodeUnauthenticated, errors.New("not authenticated"))
			c.Abort()
			return
		}
		if !slices.Contains(roles, rd.Role) {
			response.RespondError(c, http.StatusForbidden, apierr.CodeForbidden, errors.New("forbidden"))
			c.Abort()
			return
		}
		c.Next()
	}
}

func (am *AuthMiddleware) parse(tokenString string) (*ctxutil.RequestData, error) {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	claims := &Claims{}
	tok, err := parser.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return am.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	if !tok.Valid {
		return nil, errors.New("invalid or expired token")
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("invalid user id in token: %w", err)
	}
	role := strings.ToLower(strings.TrimSpace(claims.Role))
	if role == "" {
		role = ctxutil.RoleStudent
	}
	return &ctxutil.RequestData{UserID: userID, Role: role}, nil
}

// extractTokenFromAll also reads ?token= because EventSource cannot set
// headers.
func extractTokenFromAll(c *gin.Context) string {
	if qToken := c.Query("token"); qToken != "" {
		return qToken
	}
	authHeader := c.GetHeader("Authorization")
	if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
		return authHeader[7:]
	}
	return ""
}
