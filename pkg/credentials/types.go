package credentials

import (
	"sort"
	"time"
)

// Credentials is the content of credentials.toml: one upstream API key per
// provider, keyed by provider name.
type Credentials struct {
	Version   int                           `toml:"version"`
	Providers map[string]ProviderCredential `toml:"providers"`
}

// ProviderCredential is the stored key for one provider and when it was set.
type ProviderCredential struct {
	APIKey   string    `toml:"api_key"`
	StoredAt time.Time `toml:"stored_at,omitempty"`
}

func newCredentials() *Credentials {
	return &Credentials{
		Version:   currentVersion,
		Providers: make(map[string]ProviderCredential),
	}
}

// Key returns the API key stored for provider, or "".
func (c *Credentials) Key(provider string) string {
	return c.Providers[provider].APIKey
}

// Set stores key for provider, replacing any previous key.
func (c *Credentials) Set(provider, key string, at time.Time) {
	if c.Providers == nil {
		c.Providers = make(map[string]ProviderCredential)
	}
	c.Providers[provider] = ProviderCredential{APIKey: key, StoredAt: at}
}

// Remove deletes the key stored for provider. It reports whether one existed.
func (c *Credentials) Remove(provider string) bool {
	_, ok := c.Providers[provider]
	delete(c.Providers, provider)
	return ok
}

// Names returns the providers with a stored key, sorted.
func (c *Credentials) Names() []string {
	names := make([]string, 0, len(c.Providers))
	for name := range c.Providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
