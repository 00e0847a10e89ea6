package service

import (
	"context"
	"fmt"
	"log"
	"math"
	"time"

	"memberhub-api/internal/model"
	"memberhub-api/internal/repository"
)

// ExpiryConfig carries the expiry scanner wiring.
type ExpiryConfig struct {
	// OffsetHours shifts wall-clock UTC to approximate the community's
	// timezone for calendar-date comparisons.
	OffsetHours     int
	Roles           RolesConfig
	NoticeChannelID string
}

// ScanReport summarizes one expiry or reminder run. Returned as the admin
// trigger response body.
type ScanReport struct {
	Target   string `json:"target_date"`
	Scanned  int    `json:"scanned"`
	Renewed  int    `json:"renewed"`
	Revoked  int    `json:"revoked"`
	Retired  int    `json:"retired"`
	Reminded int    `json:"reminded"`
	Skipped  int    `json:"skipped"`
}

// RevokeReport describes one revocation. Member absence and already-missing
// roles both count as success: revocation is idempotent. RoleRemoved is true
// when at least one role was actually removed.
type RevokeReport struct {
	DiscordID   string `json:"discord_id"`
	MemberFound bool   `json:"member_found"`
	RoleRemoved bool   `json:"role_removed"`
}

// ExpiryService finds purchase records expiring on a target business date
// and reconciles each: renewal suppresses revocation, lapse revokes.
type ExpiryService struct {
	orders repository.OrderRepository
	roles  RoleGrantor
	notify NotificationSink
	email  EmailSender
	audit  Auditor
	alert  Alerter
	cfg    ExpiryConfig
	now    func() time.Time
}

// NewExpiryService wires the scanner/reconciler. email may be nil (reminder
// mail is then skipped with a log line).
func NewExpiryService(
	orders repository.OrderRepository,
	roles RoleGrantor,
	notify NotificationSink,
	email EmailSender,
	auditor Auditor,
	alerter Alerter,
	cfg ExpiryConfig,
) *ExpiryService {
	return &ExpiryService{
		orders: orders,
		roles:  roles,
		notify: notify,
		email:  email,
		audit:  auditor,
		alert:  alerter,
		cfg:    cfg,
		now:    time.Now,
	}
}

// BusinessDate returns the calendar date of t on the offset-adjusted clock.
func (s *ExpiryService) BusinessDate(t time.Time) string {
	return t.UTC().Add(time.Duration(s.cfg.OffsetHours) * time.Hour).Format("2006-01-02")
}

// businessTomorrow is today plus one calendar day on the offset clock.
func (s *ExpiryService) businessTomorrow(t time.Time) string {
	shifted := t.UTC().Add(time.Duration(s.cfg.OffsetHours) * time.Hour)
	return shifted.AddDate(0, 0, 1).Format("2006-01-02")
}

// FindExpiring returns all completed, non-retired orders whose normalized
// expiry date equals target. Side-effect free and idempotent: a full rescan
// runs on every invocation.
func (s *ExpiryService) FindExpiring(ctx context.Context, target string) ([]model.Order, error) {
	total, err := s.orders.Count(ctx, model.StatusCompleted)
	if err != nil {
		return nil, fmt.Errorf("order count: %w", err)
	}
	pages := int(math.Ceil(float64(total) / float64(orderPageSize)))

	expiring := []model.Order{}
	for page := 1; page <= pages; page++ {
		orders, err := s.orders.Page(ctx, page, orderPageSize, model.StatusCompleted)
		if err != nil {
			return nil, fmt.Errorf("order page %d: %w", page, err)
		}
		for _, o := range orders {
			if o.IsOld() {
				continue
			}
			raw := o.ExpiryDate()
			if raw == "" {
				continue
			}
			if model.NormalizeDate(raw) == target {
				expiring = append(expiring, o)
			}
		}
	}
	return expiring, nil
}

// RunExpiryScan retires every record expiring today, revoking the member
// role unless a renewal exists.
func (s *ExpiryService) RunExpiryScan(ctx context.Context) (*ScanReport, error) {
	target := s.BusinessDate(s.now())
	report := &ScanReport{Target: target}

	expiring, err := s.FindExpiring(ctx, target)
	if err != nil {
		return nil, err
	}
	report.Scanned = len(expiring)
	log.Printf("[ExpiryService] %d order(s) expiring on %s", len(expiring), target)

	for i := range expiring {
		s.reconcile(ctx, &expiring[i], report)
	}

	s.audit.Event("info", "expiry scan completed", map[string]string{
		"target":  target,
		"scanned": fmt.Sprint(report.Scanned),
		"renewed": fmt.Sprint(report.Renewed),
		"revoked": fmt.Sprint(report.Revoked),
		"retired": fmt.Sprint(report.Retired),
		"skipped": fmt.Sprint(report.Skipped),
	})
	return report, nil
}

// reconcile decides retire-only vs retire-and-revoke for one expiring order.
func (s *ExpiryService) reconcile(ctx context.Context, o *model.Order, report *ScanReport) {
	discordID := o.Meta(model.MetaDiscordID)
	if discordID == "" {
		log.Printf("[ExpiryService] Order %s expires but has no bound identity, skipping", o.ID)
		s.audit.Event("warning", "expiring order has no bound identity", map[string]string{"order_id": o.ID})
		report.Skipped++
		return
	}

	renewal, err := s.findActiveOrder(ctx, discordID, o.ID)
	if err != nil {
		s.escalate(ctx, "Renewal lookup failed", o.ID, discordID, err)
		report.Skipped++
		return
	}

	if renewal != nil {
		// Renewal: retire the old record without touching the role grant
		// or the newer record.
		if err := s.retire(ctx, o.ID); err != nil {
			s.escalate(ctx, "Failed to retire renewed order", o.ID, discordID, err)
			report.Skipped++
			return
		}
		report.Renewed++
		report.Retired++
		s.sendRenewalNotice(ctx, o, renewal)
		return
	}

	// Lapse: revoke first. A failed revocation leaves the record unretired
	// so the next scan picks it up again.
	if _, err := s.RevokeMembership(ctx, discordID, "membership expired"); err != nil {
		s.escalate(ctx, "Role revocation failed", o.ID, discordID, err)
		report.Skipped++
		return
	}
	report.Revoked++

	if err := s.retire(ctx, o.ID); err != nil {
		// Revocation already applied and is idempotent; do not re-revoke.
		s.escalate(ctx, "Failed to retire expired order after revocation", o.ID, discordID, err)
		return
	}
	report.Retired++
}

// findActiveOrder returns another completed, non-retired order bound to the
// same identity, or nil.
func (s *ExpiryService) findActiveOrder(ctx context.Context, discordID, excludeID string) (*model.Order, error) {
	total, err := s.orders.Count(ctx, model.StatusCompleted)
	if err != nil {
		return nil, fmt.Errorf("order count: %w", err)
	}
	pages := int(math.Ceil(float64(total) / float64(orderPageSize)))

	for page := 1; page <= pages; page++ {
		orders, err := s.orders.Page(ctx, page, orderPageSize, model.StatusCompleted)
		if err != nil {
			return nil, fmt.Errorf("order page %d: %w", page, err)
		}
		for i := range orders {
			o := &orders[i]
			if o.ID == excludeID || o.IsOld() {
				continue
			}
			if o.Meta(model.MetaDiscordID) == discordID {
				return o, nil
			}
		}
	}
	return nil, nil
}

// RevokeMembership removes the membership roles from the identity: the
// member role, and the lifetime role when one is configured. An absent
// member or an already-missing role still reports success.
func (s *ExpiryService) RevokeMembership(ctx context.Context, discordID, reason string) (*RevokeReport, error) {
	if s.cfg.Roles.MemberRoleID == "" {
		return nil, fmt.Errorf("%w: member role id", ErrMisconfiguredGrant)
	}

	report := &RevokeReport{DiscordID: discordID}

	exists, err := s.roles.MemberExists(ctx, discordID)
	if err != nil {
		return nil, fmt.Errorf("member lookup: %w", err)
	}
	if !exists {
		// Already effectively removed.
		return report, nil
	}
	report.MemberFound = true

	roleIDs := []string{s.cfg.Roles.MemberRoleID}
	if s.cfg.Roles.LifetimeRoleID != "" {
		roleIDs = append(roleIDs, s.cfg.Roles.LifetimeRoleID)
	}
	for _, roleID := range roleIDs {
		has, err := s.roles.HasRole(ctx, discordID, roleID)
		if err != nil {
			return nil, fmt.Errorf("role lookup: %w", err)
		}
		if !has {
			continue
		}
		if err := s.roles.RemoveRole(ctx, discordID, roleID, reason); err != nil {
			return nil, fmt.Errorf("role removal: %w", err)
		}
		report.RoleRemoved = true
	}
	return report, nil
}

// retire marks the order finished and flags it retired.
func (s *ExpiryService) retire(ctx context.Context, id string) error {
	_, err := s.orders.SetStatus(ctx, id, model.StatusFinished, []model.MetaEntry{
		{Key: model.MetaIsOld, Value: "true"},
	})
	return err
}

// RunReminder notifies every identity whose membership expires tomorrow,
// by email and DM. Unknown plan durations are skipped, not errors.
func (s *ExpiryService) RunReminder(ctx context.Context) (*ScanReport, error) {
	target := s.businessTomorrow(s.now())
	report := &ScanReport{Target: target}

	expiring, err := s.FindExpiring(ctx, target)
	if err != nil {
		return nil, err
	}
	report.Scanned = len(expiring)
	log.Printf("[ExpiryService] %d order(s) expiring on %s (reminder)", len(expiring), target)

	for i := range expiring {
		o := &expiring[i]

		plan := ClassifyOrderPlan(o)
		if plan == nil {
			log.Printf("[ExpiryService] Order %s has no classifiable plan, reminder skipped", o.ID)
			report.Skipped++
			continue
		}

		sent := false
		if s.email != nil && o.Billing.Email != "" {
			subject := fmt.Sprintf("Membership %s kamu berakhir besok", plan.Label)
			if err := s.email.Send(o.Billing.Email, subject, reminderEmailBody(o.Billing.FirstName, plan)); err != nil {
				log.Printf("[ExpiryService] Reminder mail for order %s failed: %v", o.ID, err)
			} else {
				sent = true
			}
		}

		if discordID := o.Meta(model.MetaDiscordID); discordID != "" {
			msg := fmt.Sprintf(
				"Halo! Membership %s kamu berakhir besok (%s). Perpanjang di %s agar akses tidak hilang.",
				plan.Label, target, plan.RenewURL)
			if err := s.notify.DirectMessage(ctx, discordID, msg); err != nil {
				log.Printf("[ExpiryService] Reminder DM for order %s failed: %v", o.ID, err)
			} else {
				sent = true
			}
		}

		if sent {
			report.Reminded++
		} else {
			report.Skipped++
		}
	}

	s.audit.Event("info", "expiry reminder completed", map[string]string{
		"target":   target,
		"scanned":  fmt.Sprint(report.Scanned),
		"reminded": fmt.Sprint(report.Reminded),
		"skipped":  fmt.Sprint(report.Skipped),
	})
	return report, nil
}

// sendRenewalNotice posts to the notice channel. Fire-and-forget.
func (s *ExpiryService) sendRenewalNotice(ctx context.Context, old, renewal *model.Order) {
	if s.cfg.NoticeChannelID == "" {
		return
	}
	username := old.Meta(model.MetaDiscordUsername)
	if username == "" {
		username = old.Meta(model.MetaDiscordID)
	}
	msg := fmt.Sprintf("%s renewed their membership (order %s supersedes %s).", username, renewal.ID, old.ID)
	if err := s.notify.ChannelMessage(ctx, s.cfg.NoticeChannelID, msg); err != nil {
		log.Printf("[ExpiryService] Renewal notice failed: %v", err)
	}
}

// escalate writes an audit record and attempts a best-effort operator alert.
func (s *ExpiryService) escalate(ctx context.Context, title, orderID, discordID string, err error) {
	fields := map[string]string{
		"order_id":   orderID,
		"discord_id": discordID,
		"error":      err.Error(),
	}
	s.audit.Event("critical", title, fields)
	s.alert.Critical(ctx, title, fields)
}

func reminderEmailBody(firstName string, plan *Plan) string {
	name := firstName
	if name == "" {
		name = "Member"
	}
	return fmt.Sprintf(
		`<p>Halo %s,</p>
<p>Membership <b>%s</b> kamu berakhir <b>besok</b>. Setelah itu akses komunitas akan dicabut otomatis.</p>
<p>Perpanjang sekarang: <a href="%s">%s</a></p>
<p>Sampai jumpa di komunitas!</p>`,
		name, plan.Label, plan.RenewURL, plan.RenewURL)
}
