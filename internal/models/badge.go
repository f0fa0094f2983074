package models

// BadgeCounter names one of the cached badge counters.
type BadgeCounter string

const (
	BadgePending    BadgeCounter = "pending"
	BadgeCorrection BadgeCounter = "correction"
)

// BadgeSignal adjusts a single counter for one user.
type BadgeSignal struct {
	UserID  string
	Counter BadgeCounter
	Delta   int
}

// BadgeCounts mirrors the counters shown on app badges. It is a cache and never authoritative.
type BadgeCounts struct {
	UserID     string `json:"user_id"`
	Pending    int    `json:"pending"`
	Correction int    `json:"correction"`
}
