package models

import (
	"encoding/json"
	"time"
)

// Scene is one candidate image returned by the provider's search API.
// CoveragePct is filled in against the AOI after the search; scenes are
// never persisted on their own, only counted into the Order they feed.
type Scene struct {
	ID            string
	AcquiredAt    time.Time
	CloudCoverPct float64 // 0-100
	CoveragePct   float64 // 0-100, fraction of the AOI covered
	Geometry      json.RawMessage
}
