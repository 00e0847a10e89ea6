package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"memberhub-api/internal/model"
	"memberhub-api/internal/repository"
	"memberhub-api/pkg/filelock"
)

// orderPageSize is the page size used when scanning the order store.
const orderPageSize = 100

// Role grant labels reported back to the caller.
const (
	RoleMember   = "member"
	RoleLifetime = "lifetime"
)

// errNoWebinarMatch signals fall-through from the webinar ledger to the
// order store. Never escapes the service.
var errNoWebinarMatch = errors.New("no webinar row matched")

// RolesConfig carries the guild role ids the service grants and revokes.
type RolesConfig struct {
	MemberRoleID   string
	LifetimeRoleID string
}

// RedeemResult is a successful claim.
type RedeemResult struct {
	Source       string   `json:"source"` // "webinar" or "order"
	OrderID      string   `json:"order_id,omitempty"`
	GrantedRoles []string `json:"granted_roles"`
}

// StatusResult answers a membership check for one identity.
type StatusResult struct {
	OrderID    string `json:"order_id"`
	ExpiryDate string `json:"expiry_date,omitempty"`
	PlanLabel  string `json:"plan_label,omitempty"`
	Lifetime   bool   `json:"lifetime"`
}

// ActivationService resolves activation codes across the webinar ledger and
// the order store, and performs the exactly-once claim.
type ActivationService struct {
	orders  repository.OrderRepository
	webinar repository.WebinarLedger
	lock    Locker
	roles   RoleGrantor
	guard   ClaimGuard
	audit   Auditor
	alert   Alerter
	cfg     RolesConfig
}

// NewActivationService wires the resolver/mutator. guard may be nil (the
// order-path race is then accepted); alert and audit must not be nil.
func NewActivationService(
	orders repository.OrderRepository,
	webinar repository.WebinarLedger,
	lock Locker,
	roles RoleGrantor,
	guard ClaimGuard,
	auditor Auditor,
	alerter Alerter,
	cfg RolesConfig,
) *ActivationService {
	return &ActivationService{
		orders:  orders,
		webinar: webinar,
		lock:    lock,
		roles:   roles,
		guard:   guard,
		audit:   auditor,
		alert:   alerter,
		cfg:     cfg,
	}
}

// Redeem binds the identity to the record matching code, granting roles.
// Every attempt, success or failure, is recorded to the audit sink.
func (s *ActivationService) Redeem(ctx context.Context, code string, identity Identity) (*RedeemResult, error) {
	res, err := s.redeem(ctx, code, identity)
	s.recordAttempt(code, identity, res, err)
	return res, err
}

func (s *ActivationService) redeem(ctx context.Context, code string, identity Identity) (*RedeemResult, error) {
	inGuild, err := s.roles.MemberExists(ctx, identity.DiscordID)
	if err != nil {
		return nil, fmt.Errorf("member lookup: %w", err)
	}
	if !inGuild {
		return nil, ErrNotInCommunity
	}

	// Webinar ledger takes precedence over the order store.
	res, err := s.redeemWebinar(ctx, code, identity)
	if !errors.Is(err, errNoWebinarMatch) {
		return res, err
	}

	return s.redeemOrder(ctx, code, identity)
}

// redeemWebinar runs the webinar path as one critical section: the ledger
// lock is held from resolution through mutation and released before the
// role grant.
func (s *ActivationService) redeemWebinar(ctx context.Context, code string, identity Identity) (*RedeemResult, error) {
	if err := s.claimWebinarRow(ctx, code, identity); err != nil {
		return nil, err
	}

	// The row is already marked used. A grant failure here leaves it used:
	// not double-granting is favored over not under-granting.
	if err := s.grantRoles(ctx, identity, true); err != nil {
		gerr := &GrantAfterClaimError{Code: code, Err: err}
		s.alert.Critical(ctx, "Webinar claim granted no roles", map[string]string{
			"code":       code,
			"discord_id": identity.DiscordID,
			"error":      err.Error(),
		})
		return nil, gerr
	}

	return &RedeemResult{
		Source:       "webinar",
		GrantedRoles: []string{RoleMember, RoleLifetime},
	}, nil
}

// claimWebinarRow holds the ledger lock across find and mark-used.
func (s *ActivationService) claimWebinarRow(ctx context.Context, code string, identity Identity) error {
	if err := s.lock.Acquire(ctx); err != nil {
		if errors.Is(err, filelock.ErrTimeout) {
			return fmt.Errorf("%w: %v", ErrLockTimeout, err)
		}
		return fmt.Errorf("ledger lock: %w", err)
	}
	defer s.lock.Release()

	row, err := s.webinar.Find(ctx, code)
	if errors.Is(err, repository.ErrRowNotFound) {
		return errNoWebinarMatch
	}
	if err != nil {
		return fmt.Errorf("ledger read: %w", err)
	}
	if row.IsUsed {
		return ErrAlreadyUsed
	}

	// Fail before mutating when the grant could never succeed.
	if err := s.requireRoles(true); err != nil {
		return err
	}

	if err := s.webinar.MarkUsed(ctx, code, identity.DiscordID, identity.Username); err != nil {
		return fmt.Errorf("ledger write: %w", err)
	}
	return nil
}

// redeemOrder scans the order store for the code and claims the first
// match: role grant first, then claim metadata persistence.
func (s *ActivationService) redeemOrder(ctx context.Context, code string, identity Identity) (*RedeemResult, error) {
	fenced := false
	if s.guard != nil {
		ok, err := s.guard.TryLock(ctx, code)
		if err != nil {
			// Guard outage degrades to the accepted race, not a refusal.
			log.Printf("[ActivationService] Claim guard unavailable: %v", err)
		} else if !ok {
			return nil, fmt.Errorf("%w: claim already in flight", ErrAlreadyUsed)
		} else {
			fenced = true
		}
	}

	res, err := s.claimOrder(ctx, code, identity)
	if err != nil && fenced {
		var persistErr *PersistAfterGrantError
		if !errors.As(err, &persistErr) {
			// Keep the fence only when the grant side-effect stuck.
			s.guard.Unlock(ctx, code)
		}
	}
	return res, err
}

func (s *ActivationService) claimOrder(ctx context.Context, code string, identity Identity) (*RedeemResult, error) {
	target, err := s.findOrderByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	lifetime := target.HasLifetimeItem()
	if err := s.requireRoles(lifetime); err != nil {
		return nil, err
	}

	if err := s.grantRoles(ctx, identity, lifetime); err != nil {
		return nil, fmt.Errorf("role grant: %w", err)
	}

	patch := []model.MetaEntry{
		{Key: model.MetaActivationUsed, Value: "1"},
		{Key: model.MetaActivationUsedAt, Value: time.Now().UTC().Format(time.RFC3339)},
		{Key: model.MetaDiscordID, Value: identity.DiscordID},
		{Key: model.MetaDiscordUsername, Value: identity.Username},
	}
	if _, err := s.orders.UpdateMetadata(ctx, target.ID, patch); err != nil {
		perr := &PersistAfterGrantError{OrderID: target.ID, Err: err}
		s.alert.Critical(ctx, "Role granted but claim not persisted", map[string]string{
			"order_id":   target.ID,
			"code":       code,
			"discord_id": identity.DiscordID,
			"error":      err.Error(),
		})
		return nil, perr
	}

	granted := []string{RoleMember}
	if lifetime {
		granted = append(granted, RoleLifetime)
	}
	return &RedeemResult{Source: "order", OrderID: target.ID, GrantedRoles: granted}, nil
}

// findOrderByCode pages through every order regardless of status. The first
// metadata match is terminal: a retired or already-claimed match means the
// code can never be reassigned to a different record on a later page.
func (s *ActivationService) findOrderByCode(ctx context.Context, code string) (*model.Order, error) {
	total, err := s.orders.Count(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("order count: %w", err)
	}
	pages := int(math.Ceil(float64(total) / float64(orderPageSize)))

	for page := 1; page <= pages; page++ {
		orders, err := s.orders.Page(ctx, page, orderPageSize, "")
		if err != nil {
			return nil, fmt.Errorf("order page %d: %w", page, err)
		}
		for i := range orders {
			o := &orders[i]
			if o.Meta(model.MetaActivationUUID) != code {
				continue
			}
			if o.IsOld() {
				return nil, ErrNotFound
			}
			if o.Meta(model.MetaDiscordID) != "" || o.Meta(model.MetaActivationUsed) != "" {
				return nil, ErrAlreadyUsed
			}
			return o, nil
		}
	}
	return nil, ErrNotFound
}

// MembershipStatus answers the "check membership" command: the identity's
// newest active order with its expiry date and plan.
func (s *ActivationService) MembershipStatus(ctx context.Context, discordID string) (*StatusResult, error) {
	total, err := s.orders.Count(ctx, model.StatusCompleted)
	if err != nil {
		return nil, fmt.Errorf("order count: %w", err)
	}
	pages := int(math.Ceil(float64(total) / float64(orderPageSize)))

	var best *model.Order
	for page := 1; page <= pages; page++ {
		orders, err := s.orders.Page(ctx, page, orderPageSize, model.StatusCompleted)
		if err != nil {
			return nil, fmt.Errorf("order page %d: %w", page, err)
		}
		for i := range orders {
			o := orders[i]
			if o.IsOld() || o.Meta(model.MetaDiscordID) != discordID {
				continue
			}
			if best == nil || o.CreatedAt.After(best.CreatedAt) {
				best = &orders[i]
			}
		}
	}
	if best == nil {
		return nil, ErrNotFound
	}

	res := &StatusResult{
		OrderID:    best.ID,
		ExpiryDate: model.NormalizeDate(best.ExpiryDate()),
		Lifetime:   best.HasLifetimeItem(),
	}
	if p := ClassifyOrderPlan(best); p != nil {
		res.PlanLabel = p.Label
	}
	return res, nil
}

// requireRoles validates the role ids a grant will need before any side
// effect happens.
func (s *ActivationService) requireRoles(lifetime bool) error {
	if s.cfg.MemberRoleID == "" {
		return fmt.Errorf("%w: member role id", ErrMisconfiguredGrant)
	}
	if lifetime && s.cfg.LifetimeRoleID == "" {
		return fmt.Errorf("%w: lifetime role id", ErrMisconfiguredGrant)
	}
	return nil
}

func (s *ActivationService) grantRoles(ctx context.Context, identity Identity, lifetime bool) error {
	if err := s.roles.AddRole(ctx, identity.DiscordID, s.cfg.MemberRoleID); err != nil {
		return err
	}
	if lifetime {
		if err := s.roles.AddRole(ctx, identity.DiscordID, s.cfg.LifetimeRoleID); err != nil {
			return err
		}
	}
	return nil
}

// recordAttempt audits one redemption attempt. Best-effort by contract of
// the audit sink; never blocks or fails the caller's response.
func (s *ActivationService) recordAttempt(code string, identity Identity, res *RedeemResult, err error) {
	outcome := outcomeOf(err)
	fields := map[string]string{
		"code":       code,
		"discord_id": identity.DiscordID,
		"username":   identity.Username,
		"outcome":    outcome,
	}
	if res != nil {
		fields["source"] = res.Source
		if res.OrderID != "" {
			fields["order_id"] = res.OrderID
		}
	}
	severity := "info"
	if err != nil {
		fields["error"] = err.Error()
		switch outcome {
		case OutcomePersistFailed, OutcomeGrantFailed, OutcomeUnclassified, OutcomeLockTimeout:
			severity = "error"
		default:
			severity = "warning"
		}
	}
	s.audit.Event(severity, "activation attempt", fields)
}
