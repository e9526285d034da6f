package domain

import (
	dErrors "gatepass/pkg/domain-errors"
)

// FaydaID is the national digital-identity number: exactly 12 numeric digits.
// Before OIDC verification completes it is only a claimed identifier and must
// not be treated as proof of identity.
type FaydaID string

func (f FaydaID) String() string { return string(f) }

// ParseFaydaID validates the 12-digit shape. It performs no checksum or
// registry lookup; existence is established by the identity provider.
func ParseFaydaID(s string) (FaydaID, error) {
	if len(s) != 12 {
		return "", dErrors.New(dErrors.CodeInvalidInput, "fayda id must be exactly 12 digits")
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return "", dErrors.New(dErrors.CodeInvalidInput, "fayda id must be exactly 12 digits")
		}
	}
	return FaydaID(s), nil
}
