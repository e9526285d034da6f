// Package host persists the host directory.
//
// Error Contract:
// All store methods follow this error pattern:
// - Return ErrNotFound when the requested host does not exist
// - Return ErrConflict when an insert collides with an existing host
// - Return nil for successful operations
// - Return wrapped errors with context for infrastructure failures
package host

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"gatepass/internal/host/models"
	id "gatepass/pkg/domain"
	"gatepass/pkg/platform/sentinel"
)

// InMemory stores hosts in a map for tests/dev and single-node runs.
type InMemory struct {
	mu    sync.RWMutex
	hosts map[id.HostID]*models.Host
}

// NewInMemory constructs an empty in-memory host store.
func NewInMemory() *InMemory {
	return &InMemory{
		hosts: make(map[id.HostID]*models.Host),
	}
}

func (s *InMemory) Create(_ context.Context, host *models.Host) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.hosts[host.ID]; exists {
		return fmt.Errorf("host already exists: %w", sentinel.ErrConflict)
	}
	copied := *host
	s.hosts[host.ID] = &copied
	return nil
}

func (s *InMemory) FindByID(_ context.Context, hostID id.HostID) (*models.Host, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	host, ok := s.hosts[hostID]
	if !ok {
		return nil, fmt.Errorf("host not found: %w", sentinel.ErrNotFound)
	}
	copied := *host
	return &copied, nil
}

// List returns hosts ordered by name. With activeOnly set, inactive hosts
// are filtered out.
func (s *InMemory) List(_ context.Context, activeOnly bool) ([]*models.Host, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	hosts := make([]*models.Host, 0, len(s.hosts))
	for _, host := range s.hosts {
		if activeOnly && !host.Active {
			continue
		}
		copied := *host
		hosts = append(hosts, &copied)
	}
	sort.Slice(hosts, func(i, j int) bool { return hosts[i].Name < hosts[j].Name })
	return hosts, nil
}

func (s *InMemory) CountActive(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, host := range s.hosts {
		if host.Active {
			count++
		}
	}
	return count, nil
}

// Execute atomically validates and mutates a host while holding the lock.
// The validate error is returned untranslated so the service can map domain
// codes; mutate runs only when validate passes.
func (s *InMemory) Execute(_ context.Context, hostID id.HostID, validate func(*models.Host) error, mutate func(*models.Host)) (*models.Host, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	host, ok := s.hosts[hostID]
	if !ok {
		return nil, fmt.Errorf("host not found: %w", sentinel.ErrNotFound)
	}
	if err := validate(host); err != nil {
		copied := *host
		return &copied, err
	}
	mutate(host)
	copied := *host
	return &copied, nil
}
