// SPDX-License-Identifier: MIT

package daemon

import "errors"

// Wiring errors from NewManager and NewApp.
var (
	ErrMissingLogger     = errors.New("daemon: no logger configured")
	ErrMissingAPIHandler = errors.New("daemon: no API handler configured")
	ErrMissingManager    = errors.New("daemon: no server manager configured")
	ErrMissingMonitor    = errors.New("daemon: no monitor configured")
)

// Lifecycle errors from Manager.
var (
	ErrManagerNotStarted = errors.New("daemon: shutdown before start")
	ErrManagerStarted    = errors.New("daemon: start called twice")
)
