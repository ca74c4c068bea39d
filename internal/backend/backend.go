// Package backend contains the DNS backend gateway: the opaque
// dependency that actually applies authorized record changes to a
// provider (PowerDNS or Netcup).
package backend

import (
	"context"
	"errors"
	"fmt"

	"github.com/zonegate/zonegate/internal/model"
)

// Gateway applies an authorized change set to the zone owning domain.
// Implementations must classify failures through *Error so the caller
// can map them onto protocol responses.
type Gateway interface {
	Apply(ctx context.Context, zone string, changes []model.RecordChange) error
	Name() string
}

// Error is a classified backend failure.
type Error struct {
	Backend   string
	Temporary bool
	Err       error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s backend: %v", e.Backend, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsTemporary reports whether err is a backend failure worth retrying
// at a higher layer. The gateway itself never retries.
func IsTemporary(err error) bool {
	var be *Error
	if errors.As(err, &be) {
		return be.Temporary
	}
	return false
}

// Registry selects the gateway responsible for a managed root.
type Registry struct {
	gateways map[string]Gateway
}

// NewRegistry builds a registry from the configured gateways.
func NewRegistry(gateways ...Gateway) *Registry {
	r := &Registry{gateways: make(map[string]Gateway)}
	for _, g := range gateways {
		r.gateways[g.Name()] = g
	}
	return r
}

// For returns the gateway named by a domain root's backend field.
func (r *Registry) For(root *model.DomainRoot) (Gateway, error) {
	if root == nil {
		return nil, fmt.Errorf("no managed root for target")
	}
	g, ok := r.gateways[root.Backend]
	if !ok {
		return nil, fmt.Errorf("no gateway configured for backend %q", root.Backend)
	}
	return g, nil
}
