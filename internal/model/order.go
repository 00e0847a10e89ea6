package model

import (
	"strings"
	"time"
)

// Order statuses. Anything else coming out of the store is carried through
// untouched but never acted on.
const (
	StatusCompleted = "completed"
	StatusFinished  = "finished"
)

// Metadata keys recognized on an order.
const (
	MetaActivationUUID   = "activation_uuid"
	MetaIsOld            = "is_old"
	MetaDiscordID        = "discord_id"
	MetaDiscordUsername  = "discord_username"
	MetaActivationUsed   = "activation_used"
	MetaActivationUsedAt = "activation_used_at"
	MetaExpiryDate       = "expiry_date"
)

// MetaEntry is one key/value pair of order metadata. Keys are not unique:
// duplicate writes append, and the last entry for a key wins on read.
type MetaEntry struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// LineItem is one purchased product on an order.
type LineItem struct {
	Name string `json:"name"`
}

// Billing holds the contact info used for reminder notices.
type Billing struct {
	FirstName string `json:"first_name"`
	Email     string `json:"email"`
}

// Order represents one completed purchase in the store.
type Order struct {
	ID        string      `json:"id"`
	Status    string      `json:"status"`
	Metadata  []MetaEntry `json:"metadata"`
	LineItems []LineItem  `json:"line_items"`
	Billing   Billing     `json:"billing"`
	CreatedAt time.Time   `json:"created_at"`
}

// Meta returns the value for key, scanning linearly so that the last
// duplicate write wins. Empty string means absent.
func (o *Order) Meta(key string) string {
	var v string
	for _, m := range o.Metadata {
		if m.Key == key {
			v = m.Value
		}
	}
	return v
}

// MetaBool normalizes the store's string-typed flags ("True", "true", "1")
// into a real boolean. Absent keys are false.
func (o *Order) MetaBool(key string) bool {
	return truthy(o.Meta(key))
}

// IsOld reports whether the order has been retired.
func (o *Order) IsOld() bool {
	return o.MetaBool(MetaIsOld)
}

// Claimable reports whether the order may still be bound to an identity:
// not retired, no bound identity, no legacy claim flag.
func (o *Order) Claimable() bool {
	return !o.IsOld() && o.Meta(MetaDiscordID) == "" && o.Meta(MetaActivationUsed) == ""
}

// ExpiryDate returns the raw expiry_date metadata value, which may carry a
// time suffix. Use NormalizeDate before comparing.
func (o *Order) ExpiryDate() string {
	return o.Meta(MetaExpiryDate)
}

// HasLifetimeItem reports whether any line item grants the lifetime tier.
func (o *Order) HasLifetimeItem() bool {
	for _, li := range o.LineItems {
		if strings.Contains(strings.ToLower(li.Name), "lifetime") {
			return true
		}
	}
	return false
}

// NormalizeDate reduces an expiry_date value to a calendar date string
// (2006-01-02). Values may arrive as a bare date or with a "T"- or
// space-separated time suffix. Returns "" when the value cannot be a date.
func NormalizeDate(raw string) string {
	s := strings.TrimSpace(raw)
	if i := strings.IndexAny(s, "T "); i >= 0 {
		s = s[:i]
	}
	if _, err := time.Parse("2006-01-02", s); err != nil {
		return ""
	}
	return s
}

func truthy(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes":
		return true
	}
	return false
}
