package models

import (
	"encoding/json"
	"time"
)

// Order types as stored in the orders table.
const (
	OrderTypeImagery = "imagery"
	OrderTypeBasemap = "basemap"
)

// Provider order states. Orders start queued and end in one of the four
// terminal states; queued and running may alternate on repeated polls.
const (
	StatusQueued    = "queued"
	StatusRunning   = "running"
	StatusSuccess   = "success"
	StatusPartial   = "partial"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// Order is one submitted imagery or basemap request, keyed by the
// provider-assigned order ID. Metadata holds the provider's raw order
// manifest and is round-tripped verbatim, never interpreted here.
type Order struct {
	OrderID            string
	AOIName            string
	OrderType          string
	BatchID            string
	StartDate          string // YYYY-MM-DD, inclusive
	EndDate            string // YYYY-MM-DD, inclusive
	Status             string
	NumBands           int
	ProductBundle      string
	ProductBundleOrder string
	Clipped            bool
	AOIAreaSqKm        float64
	ScenesFound        int
	ScenesSelected     int
	QuotaHectares      float64
	BatchOrder         bool
	MosaicName         string
	Metadata           json.RawMessage
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// IsTerminal reports whether no further provider-side transition is
// expected for the given state.
func IsTerminal(status string) bool {
	switch status {
	case StatusSuccess, StatusPartial, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// IsPending reports whether the order is still being worked on by the
// provider and should be polled again later.
func IsPending(status string) bool {
	return status == StatusQueued || status == StatusRunning
}

// Downloadable reports whether the state carries files worth fetching.
func Downloadable(status string) bool {
	return status == StatusSuccess || status == StatusPartial
}
