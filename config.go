package pglitenv

import "github.com/giantswarm/pglitenv/internal/core"

// config holds configuration for a Server. This unexported type wraps
// core.Config via embedding, keeping internal/core types out of the public
// API signature while avoiding field-by-field duplication.
type config struct {
	core.Config
}

// toCoreConfig returns the embedded core.Config.
func (c config) toCoreConfig() core.Config {
	return c.Config
}
