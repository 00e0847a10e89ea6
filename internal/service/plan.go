package service

import (
	"strings"

	"memberhub-api/internal/model"
)

// Renewal links, fixed per plan.
const (
	renewURL3Month  = "https://store.memberhub.id/product/membership-3-bulan"
	renewURL12Month = "https://store.memberhub.id/product/membership-1-tahun"
)

// Plan is the duration label derived from a product name, with its renewal
// link. A nil plan means the product could not be classified and reminders
// for it are skipped.
type Plan struct {
	Label    string
	RenewURL string
}

// ClassifyPlan derives the membership duration from a product name by
// substring match, case-insensitive.
func ClassifyPlan(productName string) *Plan {
	name := strings.ToLower(productName)
	switch {
	case strings.Contains(name, "3 bulan"):
		return &Plan{Label: "3 Bulan", RenewURL: renewURL3Month}
	case strings.Contains(name, "1 tahun"), strings.Contains(name, "12 bulan"):
		return &Plan{Label: "1 Tahun", RenewURL: renewURL12Month}
	}
	return nil
}

// ClassifyOrderPlan classifies an order by its first classifiable line item.
func ClassifyOrderPlan(o *model.Order) *Plan {
	for _, li := range o.LineItems {
		if p := ClassifyPlan(li.Name); p != nil {
			return p
		}
	}
	return nil
}
