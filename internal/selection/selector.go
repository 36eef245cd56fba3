// Package selection picks the best candidate scene per cadence interval.
package selection

import (
	"sort"

	"flowzero/internal/dates"
	"flowzero/internal/models"
)

// Select filters scenes by coverage and cloud thresholds, groups the
// survivors into cadence buckets, and keeps the single best scene per
// bucket: highest coverage, ties broken by earliest acquisition time.
// Winners are returned ordered by acquisition time. An empty result is
// not an error; the caller decides whether zero scenes is fatal.
func Select(scenes []models.Scene, cadence dates.Cadence, minCoveragePct, maxCloudCoverPct float64) ([]models.Scene, error) {
	groups := make(map[string][]models.Scene)
	for _, s := range scenes {
		if s.CoveragePct < minCoveragePct || s.CloudCoverPct > maxCloudCoverPct {
			continue
		}
		key, err := dates.IntervalKey(s.AcquiredAt, cadence)
		if err != nil {
			return nil, err
		}
		groups[key] = append(groups[key], s)
	}

	winners := make([]models.Scene, 0, len(groups))
	for _, group := range groups {
		sort.Slice(group, func(i, j int) bool {
			if group[i].CoveragePct != group[j].CoveragePct {
				return group[i].CoveragePct > group[j].CoveragePct
			}
			return group[i].AcquiredAt.Before(group[j].AcquiredAt)
		})
		winners = append(winners, group[0])
	}

	sort.Slice(winners, func(i, j int) bool {
		return winners[i].AcquiredAt.Before(winners[j].AcquiredAt)
	})
	return winners, nil
}
