package shl

// metadata.go defines the per-link access metadata: the policy fixed at
// creation time plus the counters the handler advances at request time.

import (
	"strings"
	"time"

	"github.com/information-sharing-networks/shl-demo/internal/crypto"
)

// AccessPolicy holds the creation-time access controls for a link.
// The zero value is a link with no passcode, no expiry and no ceilings.
type AccessPolicy struct {
	// Passcode, when non-empty, must be presented with every manifest
	// request. Only a bcrypt hash of it is persisted.
	Passcode string

	// MaxAccesses caps the number of successful manifest retrievals
	// (0 = unlimited)
	MaxAccesses int64

	// ExpiresIn sets the expiry relative to creation time
	// (0 = no expiry, ignored when ExpiresAt is set)
	ExpiresIn time.Duration

	// ExpiresAt sets an absolute expiry time and takes precedence over
	// ExpiresIn
	ExpiresAt time.Time

	// MaxPasscodeFailures locks the link after this many failed passcode
	// attempts (0 = unlimited attempts)
	MaxPasscodeFailures int64

	// ChargeFailedPasscode also consumes one unit of the access budget on
	// each failed passcode attempt
	ChargeFailedPasscode bool
}

// Validate checks the policy for contradictions before any artifact is
// written.
func (p AccessPolicy) Validate() error {
	if p.Passcode != "" && strings.TrimSpace(p.Passcode) == "" {
		return NewValidationError("passcode must not be blank")
	}
	if p.MaxAccesses < 0 {
		return NewValidationError("maxAccesses must not be negative")
	}
	if p.ExpiresIn < 0 {
		return NewValidationError("expiresIn must not be negative")
	}
	if p.MaxPasscodeFailures < 0 {
		return NewValidationError("maxPasscodeFailures must not be negative")
	}
	if p.MaxPasscodeFailures > 0 && p.Passcode == "" {
		return NewValidationError("maxPasscodeFailures requires a passcode")
	}
	if p.ChargeFailedPasscode && p.Passcode == "" {
		return NewValidationError("chargeFailedPasscode requires a passcode")
	}
	return nil
}

// AccessMetadata is the durable policy + counter record for a link,
// stored as metadata.json in the link's namespace. The handler re-reads
// it on every manifest request; counters are advanced with conditional
// writes so ceilings hold under concurrent requests.
type AccessMetadata struct {
	// PasscodeHash is the bcrypt hash of the passcode (empty = no passcode)
	PasscodeHash string `json:"passcodeHash,omitempty"`

	// MaxAccesses caps successful manifest retrievals (0 = unlimited)
	MaxAccesses int64 `json:"maxAccesses,omitempty"`

	// AccessCount is the number of manifest retrievals admitted so far
	AccessCount int64 `json:"accessCount"`

	// FailedPasscodeAttempts counts wrong-passcode requests
	FailedPasscodeAttempts int64 `json:"failedPasscodeAttempts"`

	// MaxPasscodeFailures locks the link once FailedPasscodeAttempts
	// reaches it (0 = unlimited attempts)
	MaxPasscodeFailures int64 `json:"maxPasscodeFailures,omitempty"`

	// ChargeFailedPasscode makes failed passcode attempts consume access
	// budget
	ChargeFailedPasscode bool `json:"chargeFailedPasscode,omitempty"`

	// ExpiresAt is the absolute expiry time (nil = no expiry)
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`

	// CreatedAt is the link creation time (UTC)
	CreatedAt time.Time `json:"createdAt"`
}

// BuildAccessMetadata converts a creation-time policy into the durable
// metadata record. Counters start at zero; relative expiry is resolved
// against now.
func BuildAccessMetadata(policy AccessPolicy, now time.Time) (*AccessMetadata, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}

	m := &AccessMetadata{
		MaxAccesses:          policy.MaxAccesses,
		MaxPasscodeFailures:  policy.MaxPasscodeFailures,
		ChargeFailedPasscode: policy.ChargeFailedPasscode,
		CreatedAt:            now.UTC(),
	}

	if policy.Passcode != "" {
		hash, err := crypto.HashPasscode(policy.Passcode)
		if err != nil {
			return nil, WrapEncryptionError(err, "failed to hash passcode")
		}
		m.PasscodeHash = hash
	}

	switch {
	case !policy.ExpiresAt.IsZero():
		t := policy.ExpiresAt.UTC()
		m.ExpiresAt = &t
	case policy.ExpiresIn > 0:
		t := now.Add(policy.ExpiresIn).UTC()
		m.ExpiresAt = &t
	}

	return m, nil
}

// RequiresPasscode reports whether manifest requests must carry a passcode.
func (m *AccessMetadata) RequiresPasscode() bool {
	return m.PasscodeHash != ""
}

// Expired reports whether the link's expiry time has passed. A link
// expiring exactly now is expired.
func (m *AccessMetadata) Expired(now time.Time) bool {
	return m.ExpiresAt != nil && !m.ExpiresAt.After(now)
}

// Exhausted reports whether the access budget is used up.
func (m *AccessMetadata) Exhausted() bool {
	return m.MaxAccesses > 0 && m.AccessCount >= m.MaxAccesses
}

// PasscodeLocked reports whether the link is locked after too many failed
// passcode attempts.
func (m *AccessMetadata) PasscodeLocked() bool {
	return m.MaxPasscodeFailures > 0 && m.FailedPasscodeAttempts >= m.MaxPasscodeFailures
}

// RemainingPasscodeAttempts returns the number of passcode attempts left
// before lockout. The second return is false when no ceiling is set.
func (m *AccessMetadata) RemainingPasscodeAttempts() (int64, bool) {
	if m.MaxPasscodeFailures == 0 {
		return 0, false
	}
	remaining := m.MaxPasscodeFailures - m.FailedPasscodeAttempts
	if remaining < 0 {
		remaining = 0
	}
	return remaining, true
}

// VerifyPasscode reports whether the presented passcode matches the
// stored hash. Always false when the presented passcode is empty.
func (m *AccessMetadata) VerifyPasscode(passcode string) bool {
	return crypto.VerifyPasscode(m.PasscodeHash, passcode)
}
