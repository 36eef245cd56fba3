package services

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/peterstace/simplefeatures/geom"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flowzero/internal/dates"
	"flowzero/internal/geometry"
	"flowzero/internal/models"
	"flowzero/internal/planet"
)

const squareJSON = `{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,1],[0,0]]]}`
const halfSquareJSON = `{"type":"Polygon","coordinates":[[[0,0],[0.5,0],[0.5,1],[0,1],[0,0]]]}`

func testAOI(t *testing.T, name string) *geometry.AOI {
	t.Helper()
	g, err := geom.UnmarshalGeoJSON([]byte(squareJSON))
	require.NoError(t, err)
	return &geometry.AOI{
		Name:     name,
		Geom:     g,
		GeoJSON:  json.RawMessage(squareJSON),
		AreaSqKm: geometry.AreaSqKm(g),
	}
}

func fullScene(id, acquired string) models.Scene {
	at, _ := time.Parse(time.RFC3339, acquired)
	return models.Scene{ID: id, AcquiredAt: at, CloudCoverPct: 1, Geometry: json.RawMessage(squareJSON)}
}

func newTestSubmit(store *fakeStore, api *fakePlanet) *SubmitService {
	return NewSubmitService(store, api, 95, 5)
}

func TestPlanOrder_DuplicateCheckedBeforeSearch(t *testing.T) {
	store := newFakeStore()
	require.NoError(t, store.Save(&models.Order{
		OrderID:   "old-1",
		AOIName:   "kericho",
		OrderType: models.OrderTypeImagery,
		StartDate: "2024-01-01",
		EndDate:   "2024-06-30",
		Status:    models.StatusSuccess,
	}))
	api := newFakePlanet()
	svc := newTestSubmit(store, api)

	_, err := svc.PlanOrder(context.Background(), OrderRequest{
		AOI:       testAOI(t, "kericho"),
		StartDate: "2024-01-01",
		EndDate:   "2024-06-30",
		Cadence:   dates.CadenceWeekly,
		NumBands:  4,
	})

	var dup *DuplicateError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "old-1", dup.Existing.OrderID)
	assert.Zero(t, api.searchCalls, "duplicate must short-circuit before any search")
}

func TestPlanOrder_ForceBypassesDuplicateCheck(t *testing.T) {
	store := newFakeStore()
	require.NoError(t, store.Save(&models.Order{
		OrderID: "old-1", AOIName: "kericho", OrderType: models.OrderTypeImagery,
		StartDate: "2024-01-01", EndDate: "2024-06-30", Status: models.StatusSuccess,
	}))
	api := newFakePlanet()
	api.scenes = []models.Scene{fullScene("s1", "2024-03-05T10:00:00Z")}
	svc := newTestSubmit(store, api)

	plan, err := svc.PlanOrder(context.Background(), OrderRequest{
		AOI:       testAOI(t, "kericho"),
		StartDate: "2024-01-01",
		EndDate:   "2024-06-30",
		Cadence:   dates.CadenceWeekly,
		NumBands:  4,
		Force:     true,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, api.searchCalls)
	assert.Len(t, plan.Scenes, 1)
}

func TestPlanOrder_CoverageAndSelection(t *testing.T) {
	store := newFakeStore()
	api := newFakePlanet()

	partial := fullScene("partial", "2024-03-05T10:00:00Z")
	partial.Geometry = json.RawMessage(halfSquareJSON)
	api.scenes = []models.Scene{
		partial,                                   // ~50% coverage, filtered
		fullScene("full", "2024-03-06T10:00:00Z"), // ~100%
	}
	svc := newTestSubmit(store, api)

	aoi := testAOI(t, "kericho")
	plan, err := svc.PlanOrder(context.Background(), OrderRequest{
		AOI:       aoi,
		StartDate: "2024-03-01",
		EndDate:   "2024-03-31",
		Cadence:   dates.CadenceWeekly,
		NumBands:  4,
	})
	require.NoError(t, err)

	assert.Equal(t, 2, plan.ScenesFound)
	require.Len(t, plan.Scenes, 1)
	assert.Equal(t, "full", plan.Scenes[0].ID)
	assert.Equal(t, planet.Bundle4Band, plan.Bundle)
	assert.InDelta(t, aoi.AreaSqKm*100, plan.QuotaHectares, 0.001)
}

func TestPlanOrder_EightBandBeforeAvailability(t *testing.T) {
	svc := newTestSubmit(newFakeStore(), newFakePlanet())
	_, err := svc.PlanOrder(context.Background(), OrderRequest{
		AOI:       testAOI(t, "kericho"),
		StartDate: "2019-01-01",
		EndDate:   "2019-12-31",
		Cadence:   dates.CadenceWeekly,
		NumBands:  8,
	})
	assert.Error(t, err)
}

func TestPlaceOrder(t *testing.T) {
	store := newFakeStore()
	api := newFakePlanet()
	api.scenes = []models.Scene{
		fullScene("s1", "2024-03-05T10:00:00Z"),
		fullScene("s2", "2024-03-12T10:00:00Z"),
	}
	svc := newTestSubmit(store, api)

	aoi := testAOI(t, "kericho")
	plan, err := svc.PlanOrder(context.Background(), OrderRequest{
		AOI:       aoi,
		StartDate: "2024-03-01",
		EndDate:   "2024-03-31",
		Cadence:   dates.CadenceWeekly,
		NumBands:  4,
		Clip:      true,
	})
	require.NoError(t, err)

	order, err := svc.PlaceOrder(context.Background(), plan)
	require.NoError(t, err)

	require.Len(t, api.submitted, 1)
	req := api.submitted[0]
	assert.Equal(t, "kericho_2024-03-01_2024-03-31", req.Name)
	assert.Equal(t, []string{"s1", "s2"}, req.ItemIDs)
	assert.Equal(t, planet.Bundle4Band, req.ProductBundle)
	assert.Equal(t, planet.Bundle4BandFallback, req.FallbackBundle)
	assert.NotNil(t, req.ClipGeometry)

	assert.Equal(t, models.StatusQueued, order.Status)
	assert.Equal(t, 2, order.ScenesSelected)
	assert.True(t, order.Clipped)
	assert.JSONEq(t, `{"scene_ids":["s1","s2"]}`, string(order.Metadata))

	saved, err := store.Get(order.OrderID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusQueued, saved.Status)
}

func TestPlaceOrder_NoScenes(t *testing.T) {
	svc := newTestSubmit(newFakeStore(), newFakePlanet())
	_, err := svc.PlaceOrder(context.Background(), &Plan{
		Request: OrderRequest{AOI: testAOI(t, "kericho")},
	})
	assert.ErrorIs(t, err, ErrNoScenes)
}

func TestOrderBasemap(t *testing.T) {
	store := newFakeStore()
	api := newFakePlanet()
	svc := newTestSubmit(store, api)
	aoi := testAOI(t, "kericho")

	order, err := svc.OrderBasemap(context.Background(), aoi, "ps_monthly_2024_01", false)
	require.NoError(t, err)
	assert.Equal(t, models.OrderTypeBasemap, order.OrderType)
	assert.Equal(t, "ps_monthly_2024_01", order.MosaicName)
	require.Len(t, api.basemapReqs, 1)
	assert.Equal(t, "ps_monthly_2024_01", api.basemapReqs[0].MosaicName)

	// Same mosaic again is a duplicate.
	_, err = svc.OrderBasemap(context.Background(), aoi, "ps_monthly_2024_01", false)
	var dup *DuplicateError
	assert.ErrorAs(t, err, &dup)

	// A different mosaic is not.
	_, err = svc.OrderBasemap(context.Background(), aoi, "ps_monthly_2024_02", false)
	assert.NoError(t, err)
}

func TestBatchSubmit(t *testing.T) {
	store := newFakeStore()
	api := newFakePlanet()
	api.scenes = []models.Scene{fullScene("s1", "2023-02-05T10:00:00Z")}
	svc := newTestSubmit(store, api)

	g, err := geom.UnmarshalGeoJSON([]byte(squareJSON))
	require.NoError(t, err)
	features := []geometry.BatchFeature{
		{
			SiteID: "AOI_kericho", StartDate: "2023-01-01", EndDate: "2024-02-29",
			Geom: g, GeoJSON: json.RawMessage(squareJSON), AreaSqKm: 100,
		},
	}

	result, err := svc.BatchSubmit(context.Background(), features, BatchOptions{
		Cadence:   dates.CadenceWeekly,
		NumBands:  4,
		MaxMonths: 6,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, result.BatchID)

	// 14 months in 6-month chunks is 3 orders.
	require.Len(t, result.Items, 3)
	assert.Equal(t, 3, result.Submitted)
	for _, item := range result.Items {
		assert.Equal(t, "kericho", item.AOIName, "site IDs must be normalized")
		require.NotNil(t, item.Order)
		assert.Equal(t, result.BatchID, item.Order.BatchID)
		assert.True(t, item.Order.BatchOrder)
	}

	inBatch, err := store.OrdersInBatch(result.BatchID)
	require.NoError(t, err)
	assert.Len(t, inBatch, 3)
}

func TestBatchSubmit_DryRunPlacesNothing(t *testing.T) {
	store := newFakeStore()
	api := newFakePlanet()
	api.scenes = []models.Scene{fullScene("s1", "2024-03-05T10:00:00Z")}
	svc := newTestSubmit(store, api)

	g, err := geom.UnmarshalGeoJSON([]byte(squareJSON))
	require.NoError(t, err)
	features := []geometry.BatchFeature{{
		SiteID: "kericho", StartDate: "2024-01-01", EndDate: "2024-06-30",
		Geom: g, GeoJSON: json.RawMessage(squareJSON), AreaSqKm: 100,
	}}

	result, err := svc.BatchSubmit(context.Background(), features, BatchOptions{
		Cadence: dates.CadenceWeekly, NumBands: 4, MaxMonths: 6, DryRun: true,
	})
	require.NoError(t, err)

	assert.Equal(t, 0, result.Submitted)
	assert.Empty(t, api.submitted)
	require.Len(t, result.Items, 1)
	require.NotNil(t, result.Items[0].Plan)
	assert.Len(t, store.orders, 0)
}

func TestBatchSubmit_TalliesDuplicatesAndFailures(t *testing.T) {
	store := newFakeStore()
	require.NoError(t, store.Save(&models.Order{
		OrderID: "old-1", AOIName: "kericho", OrderType: models.OrderTypeImagery,
		StartDate: "2024-01-01", EndDate: "2024-06-30", Status: models.StatusSuccess,
	}))
	api := newFakePlanet()
	svc := newTestSubmit(store, api)

	g, err := geom.UnmarshalGeoJSON([]byte(squareJSON))
	require.NoError(t, err)
	features := []geometry.BatchFeature{
		// Duplicate of the stored order.
		{SiteID: "kericho", StartDate: "2024-01-01", EndDate: "2024-06-30",
			Geom: g, GeoJSON: json.RawMessage(squareJSON)},
		// No scenes match for this one.
		{SiteID: "nandi", StartDate: "2024-01-01", EndDate: "2024-06-30",
			Geom: g, GeoJSON: json.RawMessage(squareJSON)},
		// Bad date range.
		{SiteID: "sotik", StartDate: "2024-06-30", EndDate: "2024-01-01",
			Geom: g, GeoJSON: json.RawMessage(squareJSON)},
	}

	result, err := svc.BatchSubmit(context.Background(), features, BatchOptions{
		Cadence: dates.CadenceWeekly, NumBands: 4, MaxMonths: 12,
	})
	require.NoError(t, err)

	assert.Equal(t, 0, result.Submitted)
	assert.Equal(t, 1, result.Duplicates)
	assert.Equal(t, 1, result.NoScenes)
	assert.Equal(t, 1, result.Failed)
}
