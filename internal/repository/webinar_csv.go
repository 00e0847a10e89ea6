package repository

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strings"

	"memberhub-api/internal/model"
)

// webinar ledger column headers, in file order.
var webinarHeader = []string{"activation_uuid", "is_used", "email", "discord_id", "discord_username"}

// CSVWebinarLedger is the file-backed webinar ledger. Every mutation
// rewrites the whole file. The ledger does no locking of its own: the
// caller holds the advisory lock across a Find/MarkUsed pair.
type CSVWebinarLedger struct {
	path string
}

// NewCSVWebinarLedger opens (or creates) the ledger file at path.
func NewCSVWebinarLedger(path string) (*CSVWebinarLedger, error) {
	l := &CSVWebinarLedger{path: path}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := l.write(nil); err != nil {
			return nil, fmt.Errorf("failed to initialize webinar ledger: %w", err)
		}
	}
	return l, nil
}

// Find returns the row matching the activation code, or ErrRowNotFound.
func (l *CSVWebinarLedger) Find(ctx context.Context, code string) (*model.WebinarRow, error) {
	rows, err := l.read()
	if err != nil {
		return nil, err
	}
	for i := range rows {
		if rows[i].ActivationUUID == code {
			return &rows[i], nil
		}
	}
	return nil, ErrRowNotFound
}

// MarkUsed flips the row's used flag and binds the identity, then persists
// the whole ledger. The flag transitions false to true exactly once; marking
// an already-used row is an error.
func (l *CSVWebinarLedger) MarkUsed(ctx context.Context, code, discordID, username string) error {
	rows, err := l.read()
	if err != nil {
		return err
	}
	for i := range rows {
		if rows[i].ActivationUUID != code {
			continue
		}
		if rows[i].IsUsed {
			return fmt.Errorf("webinar row %s already used", code)
		}
		rows[i].IsUsed = true
		rows[i].DiscordID = discordID
		rows[i].DiscordUsername = username
		return l.write(rows)
	}
	return ErrRowNotFound
}

// Append adds a new unused row. Used by operators seeding the ledger and by
// tests; redemption never creates rows.
func (l *CSVWebinarLedger) Append(ctx context.Context, row model.WebinarRow) error {
	rows, err := l.read()
	if err != nil {
		return err
	}
	rows = append(rows, row)
	return l.write(rows)
}

func (l *CSVWebinarLedger) read() ([]model.WebinarRow, error) {
	f, err := os.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open webinar ledger: %w", err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read webinar ledger: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	// Column positions come from the header row, not fixed offsets.
	col := map[string]int{}
	for i, h := range records[0] {
		col[strings.TrimSpace(h)] = i
	}
	field := func(rec []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	rows := make([]model.WebinarRow, 0, len(records)-1)
	for _, rec := range records[1:] {
		rows = append(rows, model.WebinarRow{
			ActivationUUID:  field(rec, "activation_uuid"),
			IsUsed:          model.ParseUsed(field(rec, "is_used")),
			Email:           field(rec, "email"),
			DiscordID:       field(rec, "discord_id"),
			DiscordUsername: field(rec, "discord_username"),
		})
	}
	return rows, nil
}

// write persists the whole ledger in one shot.
func (l *CSVWebinarLedger) write(rows []model.WebinarRow) error {
	var sb strings.Builder
	w := csv.NewWriter(&sb)
	if err := w.Write(webinarHeader); err != nil {
		return err
	}
	for _, r := range rows {
		rec := []string{r.ActivationUUID, model.UsedString(r.IsUsed), r.Email, r.DiscordID, r.DiscordUsername}
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	if err := os.WriteFile(l.path, []byte(sb.String()), 0o600); err != nil {
		return fmt.Errorf("failed to persist webinar ledger: %w", err)
	}
	return nil
}

// Ensure CSVWebinarLedger implements WebinarLedger
var _ WebinarLedger = (*CSVWebinarLedger)(nil)
