package repository

import (
	"encoding/json"
	"fmt"

	"memberhub-api/internal/model"
)

// applyPatch merges a metadata patch into existing entries: keys already
// present are overwritten in place (every duplicate occurrence, so the
// last-write-wins read stays consistent), new keys are appended.
func applyPatch(meta []model.MetaEntry, patch []model.MetaEntry) []model.MetaEntry {
	out := make([]model.MetaEntry, len(meta))
	copy(out, meta)
	for _, p := range patch {
		found := false
		for i := range out {
			if out[i].Key == p.Key {
				out[i].Value = p.Value
				found = true
			}
		}
		if !found {
			out = append(out, p)
		}
	}
	return out
}

func encodeOrderColumns(o model.Order) (meta, items, billing string, err error) {
	m, err := json.Marshal(o.Metadata)
	if err != nil {
		return "", "", "", fmt.Errorf("encode metadata: %w", err)
	}
	li, err := json.Marshal(o.LineItems)
	if err != nil {
		return "", "", "", fmt.Errorf("encode line items: %w", err)
	}
	b, err := json.Marshal(o.Billing)
	if err != nil {
		return "", "", "", fmt.Errorf("encode billing: %w", err)
	}
	return string(m), string(li), string(b), nil
}

func decodeOrderColumns(o *model.Order, meta, items, billing string) error {
	if meta != "" {
		if err := json.Unmarshal([]byte(meta), &o.Metadata); err != nil {
			return fmt.Errorf("decode metadata: %w", err)
		}
	}
	if items != "" {
		if err := json.Unmarshal([]byte(items), &o.LineItems); err != nil {
			return fmt.Errorf("decode line items: %w", err)
		}
	}
	if billing != "" {
		if err := json.Unmarshal([]byte(billing), &o.Billing); err != nil {
			return fmt.Errorf("decode billing: %w", err)
		}
	}
	return nil
}
