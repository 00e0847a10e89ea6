package service

import "context"

// Identity is the platform user a record gets bound to on claim.
type Identity struct {
	DiscordID string
	Username  string
}

// RoleGrantor adds and removes named permission grants on guild members.
// Satisfied by the Discord client; tests use fakes.
type RoleGrantor interface {
	AddRole(ctx context.Context, userID, roleID string) error
	RemoveRole(ctx context.Context, userID, roleID, reason string) error
	HasRole(ctx context.Context, userID, roleID string) (bool, error)
	MemberExists(ctx context.Context, userID string) (bool, error)
}

// NotificationSink delivers chat messages. Failures are the caller's to
// swallow; the sink itself reports them.
type NotificationSink interface {
	ChannelMessage(ctx context.Context, channelID, content string) error
	DirectMessage(ctx context.Context, userID, content string) error
}

// EmailSender delivers one HTML mail.
type EmailSender interface {
	Send(to, subject, htmlBody string) error
}

// Alerter delivers a best-effort structured alert to an operator-facing
// sink. Delivery failure is logged by the implementation, never raised.
type Alerter interface {
	Critical(ctx context.Context, title string, fields map[string]string)
}

// Auditor appends one structured audit record. Never fails the caller.
type Auditor interface {
	Event(severity, message string, fields map[string]string)
}

// ClaimGuard fences concurrent claims racing on the same activation code.
// A nil guard means the order store's last-write-wins race is accepted.
type ClaimGuard interface {
	TryLock(ctx context.Context, code string) (bool, error)
	Unlock(ctx context.Context, code string)
}

// Locker is the webinar ledger's exclusive advisory lock.
type Locker interface {
	Acquire(ctx context.Context) error
	Release()
}
