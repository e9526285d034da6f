// Package models holds the visit ledger aggregates.
package models

import (
	"strings"
	"time"
	"unicode/utf8"

	id "gatepass/pkg/domain"
	dErrors "gatepass/pkg/domain-errors"
)

// VisitRecord is one check-in/check-out entry in the register.
//
// Invariants:
//   - at most one open record (CheckoutAt == nil) per FaydaID
//   - CheckoutAt transitions nil → non-nil exactly once and is never
//     rewritten
//   - CheckinAt is immutable after construction
type VisitRecord struct {
	ID         id.VisitID        `json:"id"`
	FaydaID    id.FaydaID        `json:"fayda_id"`
	Name       string            `json:"name"`
	PhotoURL   string            `json:"photo_url,omitempty"`
	HostID     id.HostID         `json:"host_id"`
	HostName   string            `json:"host_name"`
	Reason     string            `json:"reason"`
	CheckinAt  time.Time         `json:"checkin_at"`
	CheckoutAt *time.Time        `json:"checkout_at,omitempty"`
	Extra      map[string]string `json:"extra,omitempty"`
}

// NewVisitRecord validates visitor-entered fields and builds an open record.
func NewVisitRecord(visitID id.VisitID, faydaID id.FaydaID, name, photoURL string, hostID id.HostID, hostName, reason string, extra map[string]string, now time.Time) (*VisitRecord, error) {
	name = strings.TrimSpace(name)
	reason = strings.TrimSpace(reason)
	if utf8.RuneCountInString(name) < 2 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "visitor name must be at least 2 characters")
	}
	if utf8.RuneCountInString(reason) < 5 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "visit reason must be at least 5 characters")
	}
	return &VisitRecord{
		ID:        visitID,
		FaydaID:   faydaID,
		Name:      name,
		PhotoURL:  photoURL,
		HostID:    hostID,
		HostName:  hostName,
		Reason:    reason,
		CheckinAt: now,
		Extra:     extra,
	}, nil
}

// IsActive reports whether the visitor is still inside.
func (v *VisitRecord) IsActive() bool {
	return v.CheckoutAt == nil
}

// CanCheckOut checks whether the one-way checkout transition is allowed.
// Use with ApplyCheckout in Execute callbacks.
func (v *VisitRecord) CanCheckOut() error {
	if v.CheckoutAt != nil {
		return dErrors.New(dErrors.CodeInvariantViolation, "visit is already checked out")
	}
	return nil
}

// ApplyCheckout closes the visit. Call CanCheckOut first to validate.
func (v *VisitRecord) ApplyCheckout(now time.Time) {
	checkout := now
	v.CheckoutAt = &checkout
}

// Duration returns the closed visit's length. The bool is false while the
// visit is still open.
func (v *VisitRecord) Duration() (time.Duration, bool) {
	if v.CheckoutAt == nil {
		return 0, false
	}
	return v.CheckoutAt.Sub(v.CheckinAt), true
}

// Ongoing returns how long the visitor has been inside as of now. For a
// closed visit it returns the final duration.
func (v *VisitRecord) Ongoing(now time.Time) time.Duration {
	if d, ok := v.Duration(); ok {
		return d
	}
	return now.Sub(v.CheckinAt)
}

// DurationMinutes returns the closed visit's length in whole minutes, or -1
// while the visit is open.
func (v *VisitRecord) DurationMinutes() int {
	d, ok := v.Duration()
	if !ok {
		return -1
	}
	return int(d.Minutes())
}

// VisitStatus filters listings by whether the visitor is still inside.
type VisitStatus string

const (
	StatusAny       VisitStatus = ""
	StatusActive    VisitStatus = "active"
	StatusCompleted VisitStatus = "completed"
)

// ListFilter narrows a visit listing. Zero values mean "no constraint".
type ListFilter struct {
	Status VisitStatus
	HostID id.HostID
	Since  time.Time
	Until  time.Time
	// Search matches case-insensitively against visitor name, fayda id, and
	// host name.
	Search string
}

// Matches reports whether a record passes the filter.
func (f ListFilter) Matches(v *VisitRecord) bool {
	switch f.Status {
	case StatusActive:
		if !v.IsActive() {
			return false
		}
	case StatusCompleted:
		if v.IsActive() {
			return false
		}
	}
	if !f.HostID.IsZero() && v.HostID != f.HostID {
		return false
	}
	if !f.Since.IsZero() && v.CheckinAt.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && !v.CheckinAt.Before(f.Until) {
		return false
	}
	if f.Search != "" {
		needle := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(v.Name), needle) &&
			!strings.Contains(strings.ToLower(string(v.FaydaID)), needle) &&
			!strings.Contains(strings.ToLower(v.HostName), needle) {
			return false
		}
	}
	return true
}

// Aggregates are the raw numbers behind the dashboard, computed by the store
// over one day window [From, Until).
type Aggregates struct {
	VisitorsToday    int
	ActiveVisits     int
	CompletedToday   int
	AvgCompleted     time.Duration
	PeakHour         int // -1 when no check-ins today
	BusiestHost      string
	BusiestHostCount int
}

// Stats is the dashboard payload.
type Stats struct {
	TotalVisitorsToday int    `json:"total_visitors_today"`
	ActiveVisits       int    `json:"active_visits"`
	AvgDuration        string `json:"avg_duration"`
	PeakHour           string `json:"peak_hour"`
	TotalHosts         int    `json:"total_hosts"`
	BusiestHost        string `json:"busiest_host"`
}
