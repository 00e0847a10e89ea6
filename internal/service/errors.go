package service

import (
	"errors"
	"fmt"
)

// The outcome taxonomy for redemption and expiry operations. NotFound and
// AlreadyUsed are computed distinctly but rendered identically to end users
// so claim state is not leaked.
var (
	// ErrNotFound means no claimable record exists for the code.
	ErrNotFound = errors.New("no claimable record for code")

	// ErrAlreadyUsed means a record matched the code but is already claimed.
	ErrAlreadyUsed = errors.New("activation code already used")

	// ErrNotInCommunity means the identity has no guild membership.
	ErrNotInCommunity = errors.New("user is not in the community")

	// ErrMisconfiguredGrant means a required role id is missing from config.
	ErrMisconfiguredGrant = errors.New("required role is not configured")

	// ErrLockTimeout means the webinar ledger lock could not be acquired.
	// Fatal for the request; never retried automatically.
	ErrLockTimeout = errors.New("webinar ledger lock timeout")
)

// PersistAfterGrantError reports that the role grant side-effect was applied
// but the claim metadata could not be persisted. Escalated for manual
// reconciliation; never retried automatically.
type PersistAfterGrantError struct {
	OrderID string
	Err     error
}

func (e *PersistAfterGrantError) Error() string {
	return fmt.Sprintf("claim succeeded, persistence failed for order %s: %v", e.OrderID, e.Err)
}

func (e *PersistAfterGrantError) Unwrap() error {
	return e.Err
}

// GrantAfterClaimError reports that a webinar row was marked used but the
// role grant failed afterwards. The row stays used: not double-granting is
// favored over not under-granting.
type GrantAfterClaimError struct {
	Code string
	Err  error
}

func (e *GrantAfterClaimError) Error() string {
	return fmt.Sprintf("webinar row claimed, role grant failed for code %s: %v", e.Code, e.Err)
}

func (e *GrantAfterClaimError) Unwrap() error {
	return e.Err
}

// Audit outcome codes.
const (
	OutcomeSuccess         = "success"
	OutcomeNotFound        = "not_found"
	OutcomeAlreadyUsed     = "already_used"
	OutcomeNotInCommunity  = "not_in_community"
	OutcomeMisconfigured   = "misconfigured_grant"
	OutcomeLockTimeout     = "lock_timeout"
	OutcomePersistFailed   = "persist_after_grant_failed"
	OutcomeGrantFailed     = "grant_after_claim_failed"
	OutcomeUnclassified    = "unclassified"
)

// outcomeOf maps an error from the redemption flow to its audit code.
func outcomeOf(err error) string {
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.Is(err, ErrNotFound):
		return OutcomeNotFound
	case errors.Is(err, ErrAlreadyUsed):
		return OutcomeAlreadyUsed
	case errors.Is(err, ErrNotInCommunity):
		return OutcomeNotInCommunity
	case errors.Is(err, ErrMisconfiguredGrant):
		return OutcomeMisconfigured
	case errors.Is(err, ErrLockTimeout):
		return OutcomeLockTimeout
	}
	var persistErr *PersistAfterGrantError
	if errors.As(err, &persistErr) {
		return OutcomePersistFailed
	}
	var grantErr *GrantAfterClaimError
	if errors.As(err, &grantErr) {
		return OutcomeGrantFailed
	}
	return OutcomeUnclassified
}
