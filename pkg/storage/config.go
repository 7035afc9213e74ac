package storage

import (
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strconv"
)

// Azure container names: 3-63 chars of lowercase letters, digits and single
// hyphens, starting and ending alphanumeric.
var containerName = regexp.MustCompile(`^[a-z0-9](?:[a-z0-9]|-[a-z0-9]){2,62}$`)

// Config selects the receipt archive. Storage is optional; when disabled no
// client is created and receipts are not archived.
type Config struct {
	Enabled          bool   `toml:"enabled"`
	ContainerName    string `toml:"container_name"`
	ConnectionString string `toml:"connection_string"`
	AccountURL       string `toml:"account_url"`
	MaxListSize      int32  `toml:"max_list_size"`
}

// Env names the variables that override each field.
type Env struct {
	Enabled          string
	ContainerName    string
	ConnectionString string
	AccountURL       string
	MaxListSize      string
}

func (c *Config) Finalize(env *Env) error {
	if env != nil {
		c.loadEnv(env)
	}
	if c.ContainerName == "" {
		c.ContainerName = "receipts"
	}
	if c.MaxListSize <= 0 {
		c.MaxListSize = 50
	}
	c.MaxListSize = min(c.MaxListSize, MaxListCap)
	return c.validate()
}

// Merge overwrites non-zero fields from overlay. An overlay can enable
// storage but never disable it.
func (c *Config) Merge(overlay *Config) {
	c.Enabled = c.Enabled || overlay.Enabled
	for dst, src := range map[*string]string{
		&c.ContainerName:    overlay.ContainerName,
		&c.ConnectionString: overlay.ConnectionString,
		&c.AccountURL:       overlay.AccountURL,
	} {
		if src != "" {
			*dst = src
		}
	}
	if overlay.MaxListSize != 0 {
		c.MaxListSize = overlay.MaxListSize
	}
}

func (c *Config) loadEnv(env *Env) {
	lookup := func(name string) (string, bool) {
		if name == "" {
			return "", false
		}
		v := os.Getenv(name)
		return v, v != ""
	}

	if v, ok := lookup(env.Enabled); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Enabled = b
		}
	}
	if v, ok := lookup(env.ContainerName); ok {
		c.ContainerName = v
	}
	if v, ok := lookup(env.ConnectionString); ok {
		c.ConnectionString = v
	}
	if v, ok := lookup(env.AccountURL); ok {
		c.AccountURL = v
	}
	if v, ok := lookup(env.MaxListSize); ok {
		if n, err := strconv.ParseInt(v, 10, 32); err == nil && n > 0 {
			c.MaxListSize = int32(n)
		}
	}
}

func (c *Config) validate() error {
	if !c.Enabled {
		return nil
	}
	if !containerName.MatchString(c.ContainerName) {
		return fmt.Errorf("invalid container_name %q", c.ContainerName)
	}
	if c.ConnectionString != "" {
		return nil
	}
	if c.AccountURL == "" {
		return fmt.Errorf("connection_string or account_url required")
	}
	u, err := url.Parse(c.AccountURL)
	if err != nil || u.Scheme != "https" || u.Host == "" {
		return fmt.Errorf("invalid account_url %q: https url required", c.AccountURL)
	}
	return nil
}
