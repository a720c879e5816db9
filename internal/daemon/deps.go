// SPDX-License-Identifier: MIT

package daemon

import (
	"net/http"

	"github.com/asentry/asentry/internal/config"
	"github.com/rs/zerolog"
)

// Deps is what NewManager needs to run the listeners.
type Deps struct {
	Logger zerolog.Logger
	Server config.APIConfig

	APIHandler http.Handler
	// MetricsHandler is served on Server.MetricsAddr. Leaving either unset
	// turns the metrics listener off.
	MetricsHandler http.Handler
}

// Validate rejects a disabled logger and a missing API handler.
func (d *Deps) Validate() error {
	switch {
	case d.Logger.GetLevel() == zerolog.Disabled:
		return ErrMissingLogger
	case d.APIHandler == nil:
		return ErrMissingAPIHandler
	}
	return nil
}
