package memory

import (
	"sync"

	"github.com/dafibh/eventcore/internal/domain"
)

// CallerProvider is a development stand-in for the identity/membership
// service the core treats as an external collaborator: it resolves an
// Auth0 subject to the UserSnapshot the middleware attaches to the request
// context. A production deployment wires middleware.AuthMiddleware to the
// real membership API instead.
type CallerProvider struct {
	mu    sync.RWMutex
	byUID map[string]domain.UserSnapshot
}

func NewCallerProvider() *CallerProvider {
	return &CallerProvider{byUID: make(map[string]domain.UserSnapshot)}
}

// Put registers or replaces the snapshot for auth0ID (test/seed helper).
func (p *CallerProvider) Put(auth0ID string, snapshot domain.UserSnapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.byUID[auth0ID] = snapshot
}

func (p *CallerProvider) GetCallerByAuth0ID(auth0ID string) (domain.UserSnapshot, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if snap, ok := p.byUID[auth0ID]; ok {
		return snap, nil
	}
	return domain.UserSnapshot{UID: auth0ID}, nil
}
