package middleware

import (
	"errors"
	"net/http"
	"strings"

	"bookingtms/internal/shared/config"
	"bookingtms/internal/shared/utils/response"
	"bookingtms/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
)

// RoleAdmin is the role claim carried by venue operator tokens
const RoleAdmin = "ADMIN"

// Context keys set by JWTAuthWithConfig
const (
	ContextKeyUserID    = "user_id"
	ContextKeyUserEmail = "user_email"
	ContextKeyUserRole  = "user_role"
)

var (
	errMissingHeader = errors.New("authorization header is required")
	errHeaderFormat  = errors.New("authorization header format must be Bearer {token}")
	errTokenType     = errors.New("invalid token type")
)

// OperatorClaims are issued by the operator dashboard; this service only verifies them
type OperatorClaims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	Type   string `json:"type"`
	jwt.RegisteredClaims
}

func bearerToken(header string) (string, error) {
	if header == "" {
		return "", errMissingHeader
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || scheme != "Bearer" || token == "" {
		return "", errHeaderFormat
	}
	return token, nil
}

// ParseOperatorToken verifies an HMAC-signed access token
func ParseOperatorToken(raw, secret string) (*OperatorClaims, error) {
	claims := &OperatorClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, jwt.ErrSignatureInvalid
	}
	if claims.Type != "access" {
		return nil, errTokenType
	}
	return claims, nil
}

// JWTAuthWithConfig verifies the bearer token and stores the operator identity in the context
func JWTAuthWithConfig(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, err := bearerToken(c.GetHeader("Authorization"))
		if err != nil {
			response.RespondJSON(c, response.StatusError, http.StatusUnauthorized, "Authentication required", nil, err)
			c.Abort()
			return
		}

		claims, err := ParseOperatorToken(raw, cfg.JWT.Secret)
		if err != nil {
			logger.GetDefault().LogAuthFailure(c.Request.Context(), err.Error(), c.ClientIP())
			message := "invalid or expired token"
			if errors.Is(err, errTokenType) {
				message = errTokenType.Error()
			}
			response.RespondJSON(c, response.StatusError, http.StatusUnauthorized, message, nil, nil)
			c.Abort()
			return
		}

		c.Set(ContextKeyUserID, claims.UserID)
		c.Set(ContextKeyUserEmail, claims.Email)
		c.Set(ContextKeyUserRole, claims.Role)
		c.Next()
	}
}

// RequireRole middleware checks if user has required role
func RequireRole(requiredRole string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := c.GetString(ContextKeyUserRole)
		if role == "" {
			response.RespondJSON(c, response.StatusError, http.StatusUnauthorized, "user role not found in context", nil, nil)
			c.Abort()
			return
		}
		if role != requiredRole {
			logger.GetDefault().LogAuthFailure(c.Request.Context(), "role "+role+" denied", c.ClientIP())
			response.RespondJSON(c, response.StatusError, http.StatusForbidden, "Insufficient permissions", nil, nil)
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireAdmin middleware that requires admin role
func RequireAdmin() gin.HandlerFunc {
	return RequireRole(RoleAdmin)
}

// AdminChain returns the handlers guarding every admin route
func AdminChain(cfg *config.Config) []gin.HandlerFunc {
	return []gin.HandlerFunc{JWTAuthWithConfig(cfg), RequireAdmin()}
}
