// Package service orchestrates host directory management.
package service

import (
	"context"
	"errors"
	"log/slog"

	"gatepass/internal/host/models"
	id "gatepass/pkg/domain"
	dErrors "gatepass/pkg/domain-errors"
	"gatepass/pkg/platform/sentinel"
	"gatepass/pkg/requestcontext"
)

// HostStore persists the host directory.
type HostStore interface {
	Create(ctx context.Context, host *models.Host) error
	FindByID(ctx context.Context, hostID id.HostID) (*models.Host, error)
	List(ctx context.Context, activeOnly bool) ([]*models.Host, error)
	CountActive(ctx context.Context) (int, error)
	Execute(ctx context.Context, hostID id.HostID, validate func(*models.Host) error, mutate func(*models.Host)) (*models.Host, error)
}

// Service manages the host directory.
type Service struct {
	hosts  HostStore
	logger *slog.Logger
}

// New constructs the host service.
func New(hosts HostStore, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{hosts: hosts, logger: logger}
}

// CreateHost validates and registers a new host.
func (s *Service) CreateHost(ctx context.Context, name, department string) (*models.Host, error) {
	host, err := models.NewHost(id.NewHostID(), name, department, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	if err := s.hosts.Create(ctx, host); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create host")
	}
	s.logger.InfoContext(ctx, "host created", "host_id", host.ID, "name", host.Name)
	return host, nil
}

// ListHosts returns the directory, optionally restricted to hosts who can
// currently receive visitors.
func (s *Service) ListHosts(ctx context.Context, activeOnly bool) ([]*models.Host, error) {
	hosts, err := s.hosts.List(ctx, activeOnly)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list hosts")
	}
	return hosts, nil
}

// CountActive returns how many hosts can currently receive visitors.
func (s *Service) CountActive(ctx context.Context) (int, error) {
	count, err := s.hosts.CountActive(ctx)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count hosts")
	}
	return count, nil
}

// GetHost returns a single host by ID.
func (s *Service) GetHost(ctx context.Context, hostID id.HostID) (*models.Host, error) {
	host, err := s.hosts.FindByID(ctx, hostID)
	if err != nil {
		return nil, translateHostErr(err)
	}
	return host, nil
}

// DeactivateHost takes a host out of service. New check-ins for the host are
// rejected from this point on; open visits are unaffected.
func (s *Service) DeactivateHost(ctx context.Context, hostID id.HostID) (*models.Host, error) {
	now := requestcontext.Now(ctx)
	host, err := s.hosts.Execute(ctx, hostID,
		func(h *models.Host) error {
			if err := h.CanDeactivate(); err != nil {
				return dErrors.New(dErrors.CodeConflict, "host is already inactive")
			}
			return nil
		},
		func(h *models.Host) {
			h.ApplyDeactivation(now)
		},
	)
	if err != nil {
		return nil, translateHostErr(err)
	}
	s.logger.InfoContext(ctx, "host deactivated", "host_id", host.ID)
	return host, nil
}

// ReactivateHost puts a host back in service.
func (s *Service) ReactivateHost(ctx context.Context, hostID id.HostID) (*models.Host, error) {
	now := requestcontext.Now(ctx)
	host, err := s.hosts.Execute(ctx, hostID,
		func(h *models.Host) error {
			if err := h.CanReactivate(); err != nil {
				return dErrors.New(dErrors.CodeConflict, "host is already active")
			}
			return nil
		},
		func(h *models.Host) {
			h.ApplyReactivation(now)
		},
	)
	if err != nil {
		return nil, translateHostErr(err)
	}
	s.logger.InfoContext(ctx, "host reactivated", "host_id", host.ID)
	return host, nil
}

func translateHostErr(err error) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "host not found")
	case dErrors.HasCode(err, dErrors.CodeConflict):
		return err
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "host store failure")
	}
}
