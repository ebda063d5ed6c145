// Package session owns the account session: the credential and validated
// identity, the supervisor that runs one gateway lifecycle at a time, and
// the façade the operator console drives.
package session

import (
	"strings"
	"sync"

	"ex-sniper/internal/settings"
	"ex-sniper/pkg/sniper"
)

// Context is the process-wide session state shared by handlers and commands.
// It is constructed once and passed by pointer.
type Context struct {
	// Settings holds the persisted display and webhook settings.
	Settings *settings.Store

	mu        sync.RWMutex
	token     string
	self      sniper.User
	validated bool
}

// NewContext creates a context seeded with token.
func NewContext(token string, store *settings.Store) *Context {
	return &Context{Settings: store, token: strings.TrimSpace(token)}
}

// Token returns the configured credential.
func (c *Context) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.token
}

// SetToken replaces the credential and forgets the validated identity.
func (c *Context) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.token = strings.TrimSpace(token)
	c.self = sniper.User{}
	c.validated = false
}

// Self returns the validated identity.
func (c *Context) Self() (sniper.User, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.self, c.validated
}

// SelfID returns the validated account id, or empty before validation.
func (c *Context) SelfID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.validated {
		return ""
	}
	return c.self.ID
}

// SetSelf records the identity that owns the credential.
func (c *Context) SetSelf(self sniper.User) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.self = self
	c.validated = true
}

// ClearSelf forgets the validated identity.
func (c *Context) ClearSelf() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.self = sniper.User{}
	c.validated = false
}
