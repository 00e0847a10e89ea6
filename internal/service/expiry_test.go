package service

import (
	"context"
	"testing"
	"time"

	"memberhub-api/internal/model"

	"github.com/stretchr/testify/require"
)

type expiryFixture struct {
	orders  *fakeOrders
	roles   *fakeRoles
	notify  *fakeNotify
	email   *fakeEmail
	audit   *fakeAudit
	alert   *fakeAlert
	service *ExpiryService
}

func newExpiryFixture(t *testing.T, memberIDs ...string) *expiryFixture {
	t.Helper()
	f := &expiryFixture{
		orders: &fakeOrders{},
		roles:  newFakeRoles(memberIDs...),
		notify: &fakeNotify{},
		email:  &fakeEmail{},
		audit:  &fakeAudit{},
		alert:  &fakeAlert{},
	}
	f.service = NewExpiryService(f.orders, f.roles, f.notify, f.email, f.audit, f.alert, ExpiryConfig{
		OffsetHours:     7,
		Roles:           RolesConfig{MemberRoleID: memberRole, LifetimeRoleID: lifetimeRole},
		NoticeChannelID: "notice-ch",
	})
	// Freeze the clock: 2024-06-29 20:00 UTC is already 2024-06-30 in UTC+7.
	f.service.now = func() time.Time {
		return time.Date(2024, 6, 29, 20, 0, 0, 0, time.UTC)
	}
	return f
}

func expiringOrder(id, discordID, expiry, item string, extra ...model.MetaEntry) model.Order {
	meta := []model.MetaEntry{
		{Key: model.MetaExpiryDate, Value: expiry},
	}
	if discordID != "" {
		meta = append(meta,
			model.MetaEntry{Key: model.MetaDiscordID, Value: discordID},
			model.MetaEntry{Key: model.MetaDiscordUsername, Value: "user-" + discordID})
	}
	meta = append(meta, extra...)
	return model.Order{
		ID:        id,
		Status:    model.StatusCompleted,
		Metadata:  meta,
		LineItems: []model.LineItem{{Name: item}},
		Billing:   model.Billing{FirstName: "Ani", Email: "ani@example.com"},
	}
}

func TestBusinessDateAppliesOffset(t *testing.T) {
	f := newExpiryFixture(t)
	// 20:00 UTC + 7h = 03:00 next day.
	got := f.service.BusinessDate(time.Date(2024, 6, 29, 20, 0, 0, 0, time.UTC))
	require.Equal(t, "2024-06-30", got)
	// 10:00 UTC + 7h stays same day.
	got = f.service.BusinessDate(time.Date(2024, 6, 29, 10, 0, 0, 0, time.UTC))
	require.Equal(t, "2024-06-29", got)
}

func TestFindExpiringFiltersAndIsIdempotent(t *testing.T) {
	f := newExpiryFixture(t)
	ctx := context.Background()
	f.orders.orders = []model.Order{
		expiringOrder("1", "42", "2024-06-30", "Membership 1 Tahun"),
		expiringOrder("2", "43", "2024-06-30T00:00:00", "Membership 3 Bulan"), // time suffix normalized
		expiringOrder("3", "44", "2024-07-01", "Membership 1 Tahun"),          // wrong day
		expiringOrder("4", "45", "", "Membership 1 Tahun"),                    // no expiry date
		expiringOrder("5", "46", "2024-06-30", "Membership 1 Tahun",
			model.MetaEntry{Key: model.MetaIsOld, Value: "true"}), // retired
		{ID: "6", Status: model.StatusFinished, Metadata: []model.MetaEntry{
			{Key: model.MetaExpiryDate, Value: "2024-06-30"}}}, // wrong status
	}

	first, err := f.service.FindExpiring(ctx, "2024-06-30")
	require.NoError(t, err)
	require.Len(t, first, 2)
	require.Equal(t, "1", first[0].ID)
	require.Equal(t, "2", first[1].ID)

	second, err := f.service.FindExpiring(ctx, "2024-06-30")
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestScanRenewalRetiresWithoutRevoking(t *testing.T) {
	f := newExpiryFixture(t, "42")
	f.roles.granted["42"] = map[string]bool{memberRole: true}
	f.orders.orders = []model.Order{
		expiringOrder("A", "42", "2024-06-30", "Membership 3 Bulan"),
		expiringOrder("B", "42", "2024-12-31", "Membership 1 Tahun"), // the renewal
	}

	report, err := f.service.RunExpiryScan(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, report.Renewed)
	require.Equal(t, 0, report.Revoked)

	// A retired, role kept, B untouched.
	a := f.orders.byID("A")
	require.Equal(t, model.StatusFinished, a.Status)
	require.True(t, a.IsOld())
	require.True(t, f.roles.granted["42"][memberRole])
	require.Empty(t, f.roles.removed)

	b := f.orders.byID("B")
	require.Equal(t, model.StatusCompleted, b.Status)
	require.False(t, b.IsOld())

	// Renewal notice emitted.
	require.NotEmpty(t, f.notify.channelMsgs)
}

func TestScanLapseRevokesThenRetires(t *testing.T) {
	f := newExpiryFixture(t, "42")
	f.roles.granted["42"] = map[string]bool{memberRole: true}
	f.orders.orders = []model.Order{
		expiringOrder("A", "42", "2024-06-30", "Membership 3 Bulan"),
	}

	report, err := f.service.RunExpiryScan(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, report.Revoked)
	require.Equal(t, 1, report.Retired)
	require.Equal(t, []string{memberRole}, f.roles.removed)

	a := f.orders.byID("A")
	require.Equal(t, model.StatusFinished, a.Status)
	require.True(t, a.IsOld())
}

func TestScanLapseRevokesLifetimeRoleToo(t *testing.T) {
	f := newExpiryFixture(t, "42")
	f.roles.granted["42"] = map[string]bool{memberRole: true, lifetimeRole: true}
	f.orders.orders = []model.Order{
		expiringOrder("A", "42", "2024-06-30", "Lifetime Promo Membership"),
	}

	report, err := f.service.RunExpiryScan(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, report.Revoked)
	require.ElementsMatch(t, []string{memberRole, lifetimeRole}, f.roles.removed)
	require.False(t, f.roles.granted["42"][memberRole])
	require.False(t, f.roles.granted["42"][lifetimeRole])

	a := f.orders.byID("A")
	require.Equal(t, model.StatusFinished, a.Status)
	require.True(t, a.IsOld())
}

func TestScanRevocationFailureLeavesRecordForNextScan(t *testing.T) {
	f := newExpiryFixture(t, "42")
	f.roles.granted["42"] = map[string]bool{memberRole: true}
	f.roles.removeErr = errBoom
	f.orders.orders = []model.Order{
		expiringOrder("A", "42", "2024-06-30", "Membership 3 Bulan"),
	}

	report, err := f.service.RunExpiryScan(context.Background())
	require.NoError(t, err)
	require.Equal(t, 0, report.Retired)

	a := f.orders.byID("A")
	require.Equal(t, model.StatusCompleted, a.Status)
	require.False(t, a.IsOld())
	require.NotEmpty(t, f.alert.titles)
}

func TestScanMissingIdentitySkipsWithWarning(t *testing.T) {
	f := newExpiryFixture(t)
	f.orders.orders = []model.Order{
		expiringOrder("A", "", "2024-06-30", "Membership 3 Bulan"),
	}

	report, err := f.service.RunExpiryScan(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, report.Skipped)
	require.Equal(t, 0, report.Retired)
}

func TestRevokeMembershipIsIdempotent(t *testing.T) {
	f := newExpiryFixture(t, "42")
	ctx := context.Background()

	// Member present without the role: success, nothing removed.
	rep, err := f.service.RevokeMembership(ctx, "42", "expired")
	require.NoError(t, err)
	require.True(t, rep.MemberFound)
	require.False(t, rep.RoleRemoved)

	// Member absent entirely: also success.
	rep, err = f.service.RevokeMembership(ctx, "unknown", "expired")
	require.NoError(t, err)
	require.False(t, rep.MemberFound)
	require.Empty(t, f.roles.removed)
}

func TestReminderSendsEmailAndDM(t *testing.T) {
	f := newExpiryFixture(t, "42")
	// Tomorrow on the offset clock is 2024-07-01.
	f.orders.orders = []model.Order{
		expiringOrder("A", "42", "2024-07-01", "Membership 3 Bulan"),
	}

	report, err := f.service.RunReminder(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, report.Reminded)
	require.Equal(t, []string{"ani@example.com"}, f.email.sent)
	require.Len(t, f.dmsFor("42"), 1)
}

func TestReminderSkipsUnknownPlanWithoutError(t *testing.T) {
	f := newExpiryFixture(t, "42")
	f.orders.orders = []model.Order{
		expiringOrder("A", "42", "2024-07-01", "Mystery Product"),
	}

	report, err := f.service.RunReminder(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, report.Skipped)
	require.Equal(t, 0, report.Reminded)
	require.Empty(t, f.email.sent)
}

func TestReminderEmailFailureStillDMs(t *testing.T) {
	f := newExpiryFixture(t, "42")
	f.email.sendErr = errBoom
	f.orders.orders = []model.Order{
		expiringOrder("A", "42", "2024-07-01", "Membership 1 Tahun"),
	}

	report, err := f.service.RunReminder(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, report.Reminded)
	require.Len(t, f.dmsFor("42"), 1)
}

func (f *expiryFixture) dmsFor(id string) []string {
	return f.notify.dms[id]
}
