package svc

import "errors"

// ErrNoOracle: neither the streaming nor the HTTP price source is configured.
var ErrNoOracle = errors.New("no price oracle configured")

// ErrVenueUnavailable: a real-mode settlement was requested but no signing
// key was provided at startup.
var ErrVenueUnavailable = errors.New("execution venue unavailable: no private key configured")
