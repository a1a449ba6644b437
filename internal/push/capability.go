package push

import (
	"context"
	"sync"
)

// PermissionState is the explicit push permission state machine. The only
// legal transitions are default to granted and default to denied.
type PermissionState string

const (
	PermissionDefault PermissionState = "default"
	PermissionGranted PermissionState = "granted"
	PermissionDenied  PermissionState = "denied"
)

// Capability tracks push permission for one service instance. It is built
// per instance, never shared statically, and a denied answer is sticky: the
// transport is never asked again.
type Capability struct {
	mu    sync.Mutex
	state PermissionState
}

// NewCapability starts in the default (undecided) state.
func NewCapability() *Capability {
	return &Capability{state: PermissionDefault}
}

// State returns the current permission state.
func (c *Capability) State() PermissionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Request resolves the permission through the transport on first call and
// caches the answer. A transport without push support answers denied with no
// error; transport failures leave the state undecided so a later call can
// retry.
func (c *Capability) Request(ctx context.Context, transport Transport) (PermissionState, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != PermissionDefault {
		return c.state, nil
	}
	state, err := transport.RequestPermission(ctx)
	if err != nil {
		return c.state, err
	}
	if state == PermissionGranted || state == PermissionDenied {
		c.state = state
	}
	return c.state, nil
}
