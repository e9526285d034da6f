// Package models holds the host directory aggregates.
package models

import (
	"strings"
	"time"
	"unicode/utf8"

	id "gatepass/pkg/domain"
	dErrors "gatepass/pkg/domain-errors"
)

// Host is a person who can receive visitors.
//
// Invariants:
//   - Name is at least 2 characters and at most 100
//   - Active toggles between true and false only; an inactive host stays in
//     the directory so past visits keep their reference
//   - CreatedAt is immutable after construction
//
// An inactive host cannot receive new check-ins; the visit service enforces
// this precondition. Existing open visits are unaffected by deactivation.
type Host struct {
	ID         id.HostID `json:"id"`
	Name       string    `json:"name"`
	Department string    `json:"department"`
	Active     bool      `json:"active"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// NewHost validates and builds a host entry.
func NewHost(hostID id.HostID, name, department string, now time.Time) (*Host, error) {
	name = strings.TrimSpace(name)
	department = strings.TrimSpace(department)
	if utf8.RuneCountInString(name) < 2 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "host name must be at least 2 characters")
	}
	if utf8.RuneCountInString(name) > 100 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "host name must be 100 characters or less")
	}
	if utf8.RuneCountInString(department) > 100 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "department must be 100 characters or less")
	}
	return &Host{
		ID:         hostID,
		Name:       name,
		Department: department,
		Active:     true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// CanDeactivate checks whether the host can be taken out of service.
// Use with ApplyDeactivation in Execute callbacks.
func (h *Host) CanDeactivate() error {
	if !h.Active {
		return dErrors.New(dErrors.CodeInvariantViolation, "host is already inactive")
	}
	return nil
}

// ApplyDeactivation takes the host out of service.
// Call CanDeactivate first to validate the transition.
func (h *Host) ApplyDeactivation(now time.Time) {
	h.Active = false
	h.UpdatedAt = now
}

// CanReactivate checks whether the host can be put back in service.
func (h *Host) CanReactivate() error {
	if h.Active {
		return dErrors.New(dErrors.CodeInvariantViolation, "host is already active")
	}
	return nil
}

// ApplyReactivation puts the host back in service.
// Call CanReactivate first to validate the transition.
func (h *Host) ApplyReactivation(now time.Time) {
	h.Active = true
	h.UpdatedAt = now
}
