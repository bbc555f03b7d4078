package server

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/semah/internal/identity"
	obscontext "github.com/smallbiznis/semah/internal/observability/context"
)

const contextPrincipalKey = "principal"

// AuthRequired resolves the bearer token into a principal once per request.
func (s *Server) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := bearerToken(c)
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		if err := s.attachPrincipal(c, raw); err != nil {
			AbortWithError(c, err)
			return
		}
		c.Next()
	}
}

// OptionalAuth attaches a principal when a token is sent. A token that is
// sent but invalid is still rejected.
func (s *Server) OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := bearerToken(c)
		if !ok {
			c.Next()
			return
		}
		if err := s.attachPrincipal(c, raw); err != nil {
			AbortWithError(c, err)
			return
		}
		c.Next()
	}
}

func (s *Server) attachPrincipal(c *gin.Context, raw string) error {
	if s.verifier == nil {
		return ErrUnauthorized
	}
	principal, err := s.verifier.Verify(raw)
	if err != nil {
		return err
	}

	ctx := identity.WithPrincipal(c.Request.Context(), principal)
	ctx = obscontext.WithActor(ctx, principal.Role.String(), principal.ID.String())
	c.Request = c.Request.WithContext(ctx)
	c.Set(contextPrincipalKey, principal)
	return nil
}

func (s *Server) authorizeAction(object string, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := principalFromContext(c)
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		if s.authzSvc == nil {
			AbortWithError(c, ErrForbidden)
			return
		}
		if err := s.authzSvc.Authorize(c.Request.Context(), principal, object, action); err != nil {
			AbortWithError(c, err)
			return
		}
		c.Next()
	}
}

func principalFromContext(c *gin.Context) (identity.Principal, bool) {
	value, ok := c.Get(contextPrincipalKey)
	if !ok {
		return identity.Principal{}, false
	}
	principal, ok := value.(identity.Principal)
	return principal, ok
}

func bearerToken(c *gin.Context) (string, bool) {
	header := strings.TrimSpace(c.GetHeader("Authorization"))
	if header == "" {
		return "", false
	}
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
