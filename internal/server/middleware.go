package server

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	expensedomain "github.com/smallbiznis/expenseflow/internal/expense/domain"
	userdomain "github.com/smallbiznis/expenseflow/internal/user/domain"
	"go.uber.org/zap"
)

const (
	contextUserIDKey    = "user_id"
	contextCompanyIDKey = "company_id"
	contextRoleKey      = "role"
	contextTokenKey     = "token"
)

func RequestLogger(logger *zap.Logger) gin.HandlerFunc {
	log := logger.Named("http")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		log.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

func (s *Server) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c.GetHeader("Authorization"))
		if token == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		identity, err := s.authSvc.Verify(c.Request.Context(), token)
		if err != nil {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		c.Set(contextUserIDKey, identity.UserID)
		c.Set(contextCompanyIDKey, identity.CompanyID)
		c.Set(contextRoleKey, identity.Role)
		c.Set(contextTokenKey, token)
		c.Next()
	}
}

func (s *Server) RequireRole(roles ...userdomain.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := userdomain.Role(c.GetString(contextRoleKey))
		for _, allowed := range roles {
			if role == allowed {
				c.Next()
				return
			}
		}
		AbortWithError(c, ErrForbidden)
	}
}

// LoginRateLimited throttles credential endpoints per client IP.
func (s *Server) LoginRateLimited() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.loginLimit != nil && !s.loginLimit.Allow(c.Request.Context(), c.ClientIP()) {
			AbortWithError(c, ErrTooManyRequests)
			return
		}
		c.Next()
	}
}

func actorFrom(c *gin.Context) expensedomain.Actor {
	return expensedomain.Actor{
		UserID:    c.GetString(contextUserIDKey),
		CompanyID: c.GetString(contextCompanyIDKey),
		Role:      c.GetString(contextRoleKey),
	}
}

func bearerToken(header string) string {
	header = strings.TrimSpace(header)
	if header == "" {
		return ""
	}
	if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return header
}
