package model

// WebinarRow is one row of the webinar ledger, the promotional/lifetime
// grant path alternate to a store order. Rows are never deleted; IsUsed
// flips false to true exactly once.
type WebinarRow struct {
	ActivationUUID  string
	IsUsed          bool
	Email           string
	DiscordID       string
	DiscordUsername string
}

// ParseUsed normalizes the ledger's string-typed used flag.
func ParseUsed(s string) bool {
	return truthy(s)
}

// UsedString renders the used flag back into the ledger's column format.
func UsedString(used bool) string {
	if used {
		return "True"
	}
	return "False"
}
