package selection

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flowzero/internal/dates"
	"flowzero/internal/models"
)

func scene(id string, acquired string, coverage, cloud float64) models.Scene {
	t, err := time.Parse(time.RFC3339, acquired)
	if err != nil {
		panic(err)
	}
	return models.Scene{ID: id, AcquiredAt: t, CoveragePct: coverage, CloudCoverPct: cloud}
}

func TestSelect_FiltersThresholds(t *testing.T) {
	scenes := []models.Scene{
		scene("low-coverage", "2024-03-04T10:00:00Z", 80, 0),
		scene("cloudy", "2024-03-05T10:00:00Z", 99, 30),
		scene("good", "2024-03-06T10:00:00Z", 98, 2),
	}

	got, err := Select(scenes, dates.CadenceWeekly, 95, 5)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "good", got[0].ID)

	for _, s := range got {
		assert.GreaterOrEqual(t, s.CoveragePct, 95.0)
		assert.LessOrEqual(t, s.CloudCoverPct, 5.0)
	}
}

func TestSelect_BestCoveragePerInterval(t *testing.T) {
	scenes := []models.Scene{
		scene("a", "2024-03-04T10:00:00Z", 96, 0), // week 10
		scene("b", "2024-03-06T10:00:00Z", 99, 0), // week 10, best
		scene("c", "2024-03-12T10:00:00Z", 97, 0), // week 11
	}

	got, err := Select(scenes, dates.CadenceWeekly, 95, 5)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].ID)
	assert.Equal(t, "c", got[1].ID)
}

func TestSelect_TieBreakEarliestAcquired(t *testing.T) {
	scenes := []models.Scene{
		scene("later", "2024-03-07T10:00:00Z", 99, 0),
		scene("earlier", "2024-03-05T10:00:00Z", 99, 0),
	}

	// Deterministic across repeated runs and input orderings.
	for range 10 {
		got, err := Select(scenes, dates.CadenceWeekly, 90, 5)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "earlier", got[0].ID)

		got, err = Select([]models.Scene{scenes[1], scenes[0]}, dates.CadenceWeekly, 90, 5)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "earlier", got[0].ID)
	}
}

func TestSelect_WinnersOrderedByAcquisition(t *testing.T) {
	scenes := []models.Scene{
		scene("march", "2024-03-15T10:00:00Z", 99, 0),
		scene("january", "2024-01-15T10:00:00Z", 99, 0),
		scene("february", "2024-02-15T10:00:00Z", 99, 0),
	}

	got, err := Select(scenes, dates.CadenceMonthly, 90, 5)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "january", got[0].ID)
	assert.Equal(t, "february", got[1].ID)
	assert.Equal(t, "march", got[2].ID)
}

func TestSelect_EmptyResult(t *testing.T) {
	scenes := []models.Scene{
		scene("a", "2024-03-04T10:00:00Z", 10, 0),
	}

	got, err := Select(scenes, dates.CadenceDaily, 95, 5)
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = Select(nil, dates.CadenceDaily, 95, 5)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSelect_InvalidCadence(t *testing.T) {
	scenes := []models.Scene{scene("a", "2024-03-04T10:00:00Z", 99, 0)}
	_, err := Select(scenes, dates.Cadence("hourly"), 0, 100)
	assert.Error(t, err)
}
