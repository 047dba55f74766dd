package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"retailops/internal/model"
	"retailops/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// Roles carried in the "role" claim.
const (
	RoleOwner   = model.RoleOwner
	RoleAdmin   = model.RoleAdmin
	RoleManager = model.RoleManager
	RoleStaff   = model.RoleStaff
)

// Context keys set by RequireRole.
const (
	CtxUserID   = "userID"
	CtxUserName = "userName"
	CtxUserRole = "userRole"
)

const devSecret = "default_super_secret_key"

var (
	ErrMissingToken = errors.New("authorization is missing")
	ErrBadFormat    = errors.New("invalid authorization format, expected 'Bearer <token>'")
	ErrNoRole       = errors.New("role not found in token")
)

// Principal is the verified identity behind a request.
type Principal struct {
	Subject string
	Name    string
	Role    string
}

// Actor is the name written to audit logs and review decisions.
func (p Principal) Actor() string {
	if p.Name != "" {
		return p.Name
	}
	return p.Subject
}

// Authenticator verifies HS256 access tokens issued by the identity service.
type Authenticator struct {
	secret []byte
}

// NewAuthenticator falls back to a development secret when none is configured; config
// validation refuses an empty secret in release mode.
func NewAuthenticator(secret string) *Authenticator {
	if secret == "" {
		secret = devSecret
	}
	return &Authenticator{secret: []byte(secret)}
}

// ParseToken validates raw and extracts the principal.
func (a *Authenticator) ParseToken(raw string) (Principal, error) {
	if raw == "" {
		return Principal{}, ErrMissingToken
	}
	token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return a.secret, nil
	})
	if err != nil {
		return Principal{}, fmt.Errorf("invalid token: %w", err)
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return Principal{}, errors.New("invalid token claims")
	}

	role, _ := claims["role"].(string)
	if role == "" {
		return Principal{}, ErrNoRole
	}
	sub, _ := claims.GetSubject()
	name, _ := claims["name"].(string)
	return Principal{Subject: sub, Name: name, Role: strings.ToLower(role)}, nil
}

// tokenFromRequest prefers the access_token cookie and falls back to the Authorization header.
func tokenFromRequest(c *gin.Context) (string, error) {
	if cookie, err := c.Cookie("access_token"); err == nil && cookie != "" {
		return cookie, nil
	}
	header := c.GetHeader("Authorization")
	if header == "" {
		return "", ErrMissingToken
	}
	parts := strings.Split(header, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", ErrBadFormat
	}
	return parts[1], nil
}

// RequireRole validates the JWT and checks the role claim against allowedRoles.
func (a *Authenticator) RequireRole(allowedRoles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, err := tokenFromRequest(c)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, err.Error()))
			return
		}

		p, err := a.ParseToken(raw)
		if errors.Is(err, ErrNoRole) {
			c.AbortWithStatusJSON(http.StatusForbidden, response.Error(http.StatusForbidden, err.Error()))
			return
		}
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, err.Error()))
			return
		}

		if !hasRole(p.Role, allowedRoles) {
			c.AbortWithStatusJSON(http.StatusForbidden, response.Error(http.StatusForbidden, "Access denied: insufficient permissions"))
			return
		}

		c.Set(CtxUserID, p.Subject)
		c.Set(CtxUserName, p.Actor())
		c.Set(CtxUserRole, p.Role)

		c.Next()
	}
}

func hasRole(role string, allowed []string) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, r := range allowed {
		if role == r {
			return true
		}
	}
	return false
}

// Actor returns the authenticated actor name, or "" when the route is public.
func Actor(c *gin.Context) string {
	return c.GetString(CtxUserName)
}
