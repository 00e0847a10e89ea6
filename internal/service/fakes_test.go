package service

import (
	"context"
	"errors"
	"sync"

	"memberhub-api/internal/model"
	"memberhub-api/internal/repository"
	"memberhub-api/pkg/filelock"
)

// fakeOrders is an in-memory OrderRepository.
type fakeOrders struct {
	mu         sync.Mutex
	orders     []model.Order
	failUpdate error
	failStatus error
}

func (f *fakeOrders) Count(ctx context.Context, status string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, o := range f.orders {
		if status == "" || o.Status == status {
			n++
		}
	}
	return n, nil
}

func (f *fakeOrders) Page(ctx context.Context, page, pageSize int, status string) ([]model.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	filtered := []model.Order{}
	for _, o := range f.orders {
		if status == "" || o.Status == status {
			filtered = append(filtered, o)
		}
	}
	start := (page - 1) * pageSize
	if start >= len(filtered) {
		return nil, nil
	}
	end := start + pageSize
	if end > len(filtered) {
		end = len(filtered)
	}
	return filtered[start:end], nil
}

func (f *fakeOrders) UpdateMetadata(ctx context.Context, id string, patch []model.MetaEntry) (model.Order, error) {
	if f.failUpdate != nil {
		return model.Order{}, f.failUpdate
	}
	return f.mutate(id, "", patch)
}

func (f *fakeOrders) SetStatus(ctx context.Context, id, status string, patch []model.MetaEntry) (model.Order, error) {
	if f.failStatus != nil {
		return model.Order{}, f.failStatus
	}
	return f.mutate(id, status, patch)
}

func (f *fakeOrders) mutate(id, status string, patch []model.MetaEntry) (model.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.orders {
		if f.orders[i].ID != id {
			continue
		}
		for _, p := range patch {
			found := false
			for j := range f.orders[i].Metadata {
				if f.orders[i].Metadata[j].Key == p.Key {
					f.orders[i].Metadata[j].Value = p.Value
					found = true
				}
			}
			if !found {
				f.orders[i].Metadata = append(f.orders[i].Metadata, p)
			}
		}
		if status != "" {
			f.orders[i].Status = status
		}
		return f.orders[i], nil
	}
	return model.Order{}, repository.ErrOrderNotFound
}

func (f *fakeOrders) InsertOrder(ctx context.Context, o model.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orders = append(f.orders, o)
	return nil
}

func (f *fakeOrders) Close() error { return nil }

func (f *fakeOrders) byID(id string) *model.Order {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.orders {
		if f.orders[i].ID == id {
			return &f.orders[i]
		}
	}
	return nil
}

// fakeLedger is an in-memory WebinarLedger.
type fakeLedger struct {
	rows      []model.WebinarRow
	markCalls int
	failMark  error
}

func (f *fakeLedger) Find(ctx context.Context, code string) (*model.WebinarRow, error) {
	for i := range f.rows {
		if f.rows[i].ActivationUUID == code {
			return &f.rows[i], nil
		}
	}
	return nil, repository.ErrRowNotFound
}

func (f *fakeLedger) MarkUsed(ctx context.Context, code, discordID, username string) error {
	f.markCalls++
	if f.failMark != nil {
		return f.failMark
	}
	for i := range f.rows {
		if f.rows[i].ActivationUUID == code {
			f.rows[i].IsUsed = true
			f.rows[i].DiscordID = discordID
			f.rows[i].DiscordUsername = username
			return nil
		}
	}
	return repository.ErrRowNotFound
}

// fakeLock is an in-memory Locker.
type fakeLock struct {
	acquires int
	releases int
	timeout  bool
}

func (f *fakeLock) Acquire(ctx context.Context) error {
	if f.timeout {
		return filelock.ErrTimeout
	}
	f.acquires++
	return nil
}

func (f *fakeLock) Release() { f.releases++ }

// fakeRoles is an in-memory RoleGrantor.
type fakeRoles struct {
	members   map[string]bool            // discordID -> in guild
	granted   map[string]map[string]bool // discordID -> roleID -> held
	addErr    error
	removeErr error
	removed   []string // roleIDs removed, in order
}

func newFakeRoles(memberIDs ...string) *fakeRoles {
	f := &fakeRoles{members: map[string]bool{}, granted: map[string]map[string]bool{}}
	for _, id := range memberIDs {
		f.members[id] = true
	}
	return f
}

func (f *fakeRoles) MemberExists(ctx context.Context, userID string) (bool, error) {
	return f.members[userID], nil
}

func (f *fakeRoles) AddRole(ctx context.Context, userID, roleID string) error {
	if f.addErr != nil {
		return f.addErr
	}
	if f.granted[userID] == nil {
		f.granted[userID] = map[string]bool{}
	}
	f.granted[userID][roleID] = true
	return nil
}

func (f *fakeRoles) RemoveRole(ctx context.Context, userID, roleID, reason string) error {
	if f.removeErr != nil {
		return f.removeErr
	}
	if f.granted[userID] != nil {
		delete(f.granted[userID], roleID)
	}
	f.removed = append(f.removed, roleID)
	return nil
}

func (f *fakeRoles) HasRole(ctx context.Context, userID, roleID string) (bool, error) {
	return f.granted[userID][roleID], nil
}

// fakeNotify records messages.
type fakeNotify struct {
	channelMsgs []string
	dms         map[string][]string
	dmErr       error
}

func (f *fakeNotify) ChannelMessage(ctx context.Context, channelID, content string) error {
	f.channelMsgs = append(f.channelMsgs, content)
	return nil
}

func (f *fakeNotify) DirectMessage(ctx context.Context, userID, content string) error {
	if f.dmErr != nil {
		return f.dmErr
	}
	if f.dms == nil {
		f.dms = map[string][]string{}
	}
	f.dms[userID] = append(f.dms[userID], content)
	return nil
}

// fakeEmail records sent mail.
type fakeEmail struct {
	sent    []string // recipients
	sendErr error
}

func (f *fakeEmail) Send(to, subject, htmlBody string) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, to)
	return nil
}

// fakeAudit records events.
type fakeAudit struct {
	events []auditEvent
}

type auditEvent struct {
	severity string
	message  string
	fields   map[string]string
}

func (f *fakeAudit) Event(severity, message string, fields map[string]string) {
	f.events = append(f.events, auditEvent{severity, message, fields})
}

func (f *fakeAudit) lastOutcome() string {
	if len(f.events) == 0 {
		return ""
	}
	return f.events[len(f.events)-1].fields["outcome"]
}

// fakeAlert records critical alerts.
type fakeAlert struct {
	titles []string
}

func (f *fakeAlert) Critical(ctx context.Context, title string, fields map[string]string) {
	f.titles = append(f.titles, title)
}

// fakeGuard is an in-memory ClaimGuard.
type fakeGuard struct {
	locked  map[string]bool
	unlocks []string
	err     error
}

func (f *fakeGuard) TryLock(ctx context.Context, code string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	if f.locked == nil {
		f.locked = map[string]bool{}
	}
	if f.locked[code] {
		return false, nil
	}
	f.locked[code] = true
	return true, nil
}

func (f *fakeGuard) Unlock(ctx context.Context, code string) {
	f.unlocks = append(f.unlocks, code)
	delete(f.locked, code)
}

var errBoom = errors.New("boom")
