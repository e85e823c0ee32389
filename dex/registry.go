package dex

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/polymev/flasharb/apperror"
)

// Registry maps router addresses to their registered adapters. A hop
// naming an unregistered router fails explicitly instead of being
// dispatched by address guesswork.
type Registry struct {
	mu      sync.RWMutex
	routers map[common.Address]Router
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{routers: make(map[common.Address]Router)}
}

// Register adds a router adapter under its address. Registering twice
// replaces the previous adapter.
func (r *Registry) Register(router Router) error {
	if router == nil {
		return apperror.Validation("nil router")
	}
	addr := router.Address()
	if addr == (common.Address{}) {
		return apperror.Validation("router %q has zero address", router.Name())
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.routers[addr] = router
	return nil
}

// Lookup resolves a router address to its adapter.
func (r *Registry) Lookup(addr common.Address) (Router, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	router, ok := r.routers[addr]
	if !ok {
		return nil, apperror.Validation("router %s is not registered", addr.Hex())
	}
	return router, nil
}

// Addresses lists the registered router addresses.
func (r *Registry) Addresses() []common.Address {
	r.mu.RLock()
	defer r.mu.RUnlock()
	addrs := make([]common.Address, 0, len(r.routers))
	for addr := range r.routers {
		addrs = append(addrs, addr)
	}
	return addrs
}

// Len returns the number of registered routers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.routers)
}
