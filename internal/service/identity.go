package service

import (
	"sync"

	"go.uber.org/zap"

	"github.com/capitalize-ai/relay/internal/model"
	"github.com/capitalize-ai/relay/pkg/logger"
	"github.com/capitalize-ai/relay/pkg/metrics"
)

// IdentityRegistry stores participant identities for the process lifetime.
type IdentityRegistry struct {
	logger *logger.Logger

	identities map[string]model.Identity
	mu         sync.RWMutex
}

// NewIdentityRegistry creates an empty registry.
func NewIdentityRegistry(log *logger.Logger) *IdentityRegistry {
	return &IdentityRegistry{
		logger:     logger.OrGlobal(log).Component("identities"),
		identities: make(map[string]model.Identity),
	}
}

// Upsert creates the identity if absent. For an existing identity the display
// name is replaced only when name is non-empty. New identities with an empty
// name get DefaultName.
func (r *IdentityRegistry) Upsert(id, name string) model.Identity {
	r.mu.Lock()
	defer r.mu.Unlock()

	ident, exists := r.identities[id]
	if !exists {
		if name == "" {
			name = DefaultName
		}
		ident = model.Identity{ID: id, Name: name}
		r.identities[id] = ident
		metrics.IdentitiesTotal.Inc()
		r.logger.Debug("identity registered", zap.String("identity_id", id))
		return ident
	}

	if name != "" && name != ident.Name {
		ident.Name = name
		r.identities[id] = ident
	}
	return ident
}

// Get looks up an identity.
func (r *IdentityRegistry) Get(id string) (model.Identity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ident, ok := r.identities[id]
	return ident, ok
}

// Rename changes the display name of an existing identity.
func (r *IdentityRegistry) Rename(id, name string) (model.Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ident, ok := r.identities[id]
	if !ok {
		return model.Identity{}, notFoundf("identity %q", id)
	}
	ident.Name = name
	r.identities[id] = ident

	r.logger.Debug("identity renamed", zap.String("identity_id", id))
	return ident, nil
}

// Len returns the number of registered identities.
func (r *IdentityRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.identities)
}
