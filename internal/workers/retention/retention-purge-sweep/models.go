// internal/workers/retention/retention-purge-sweep/models.go
package retentionpurgesweep

import "time"

// Input may override the configured page size for one run.
type Input struct {
	Batch int `json:"batch,omitempty"`
}

type Output struct {
	Skipped   bool      `json:"skipped"`
	RanAt     time.Time `json:"ranAt"`
	Examined  int       `json:"examined"`
	Purged    int       `json:"purged"`
	Failed    int       `json:"failed"`
	PurgedIDs []string  `json:"purgedIds"`
}
