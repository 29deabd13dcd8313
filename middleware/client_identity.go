package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// ClientIDHeader carries the anonymous client identity in both directions.
	ClientIDHeader = "X-Client-Id"
	// ContextClientIDKey stores the client identity inside Gin context.
	ContextClientIDKey = "client_id"

	maxClientIDLen = 64
)

// IdentityProvider mints a new anonymous client identity.
type IdentityProvider func() string

// DefaultIdentity mints random UUIDs.
var DefaultIdentity IdentityProvider = uuid.NewString

// ClientIdentity attaches an anonymous identity to every request. A well-formed
// X-Client-Id header is trusted; otherwise a new id is minted and echoed back.
func ClientIdentity(provider IdentityProvider) gin.HandlerFunc {
	if provider == nil {
		provider = DefaultIdentity
	}
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(ClientIDHeader))
		if !validClientID(id) {
			id = provider()
		}
		c.Set(ContextClientIDKey, id)
		c.Header(ClientIDHeader, id)
		c.Next()
	}
}

// ClientID returns the identity set by ClientIdentity, or "" when absent.
func ClientID(c *gin.Context) string {
	return c.GetString(ContextClientIDKey)
}

func validClientID(id string) bool {
	if id == "" || len(id) > maxClientIDLen {
		return false
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return false
		}
	}
	return true
}
