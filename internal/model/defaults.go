package model

import "time"

// Shared defaults used by the daemon, the console and cprctl.
const (
	DefaultUpdateInterval = 250 * time.Millisecond
	DefaultAPIPort        = 8000
)
