package services

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flowzero/internal/downloader"
	"flowzero/internal/models"
	"flowzero/internal/planet"
)

func newTestStatus(store *fakeStore, api *fakePlanet, sink *memSink, fetcher *fakeFetcher) *StatusService {
	return NewStatusService(store, api, downloader.NewEngine(fetcher, 2), sink)
}

func TestCheckOrder_PersistsProviderState(t *testing.T) {
	store := newFakeStore()
	require.NoError(t, store.Save(&models.Order{
		OrderID: "order-1", AOIName: "kericho", OrderType: models.OrderTypeImagery,
		StartDate: "2024-01-01", EndDate: "2024-06-30", Status: models.StatusQueued,
	}))
	api := newFakePlanet()
	raw := json.RawMessage(`{"id":"order-1","state":"running","_links":{"results":[]}}`)
	api.statuses["order-1"] = &planet.OrderStatus{ID: "order-1", State: planet.StateRunning, Raw: raw}
	svc := newTestStatus(store, api, newMemSink(), &fakeFetcher{})

	result, err := svc.CheckOrder(context.Background(), "order-1", CheckOptions{})
	require.NoError(t, err)
	assert.Equal(t, planet.StateRunning, result.State)

	saved, err := store.Get("order-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusRunning, saved.Status)
	// The provider body lands in metadata byte for byte.
	assert.Equal(t, raw, saved.Metadata)
}

func TestCheckOrder_UnknownLocallyStillChecked(t *testing.T) {
	api := newFakePlanet()
	api.statuses["order-x"] = &planet.OrderStatus{ID: "order-x", State: planet.StateFailed, ErrorHints: []string{"quota"}}
	svc := newTestStatus(newFakeStore(), api, newMemSink(), &fakeFetcher{})

	result, err := svc.CheckOrder(context.Background(), "order-x", CheckOptions{})
	require.NoError(t, err)
	assert.Equal(t, planet.StateFailed, result.State)
	assert.Equal(t, []string{"quota"}, result.ErrorHints)
}

func TestCheckOrder_DownloadsImageryIntoWeeklyFolders(t *testing.T) {
	store := newFakeStore()
	require.NoError(t, store.Save(&models.Order{
		OrderID: "order-1", AOIName: "kericho", OrderType: models.OrderTypeImagery,
		NumBands: 4, StartDate: "2024-03-01", EndDate: "2024-03-31", Status: models.StatusRunning,
	}))
	api := newFakePlanet()
	api.statuses["order-1"] = &planet.OrderStatus{
		ID: "order-1", State: planet.StateSuccess,
		Results: []planet.ResultLink{
			// Tuesday 2024-03-05; its week starts Sunday 2024-03-03.
			{Name: "files/20240305_101502_89_2479_3B_AnalyticMS_SR_clip.tif", Location: "https://x/a"},
			{Name: "manifest.json", Location: "https://x/m"},
		},
	}
	sink := newMemSink()
	fetcher := &fakeFetcher{}
	svc := newTestStatus(store, api, sink, fetcher)

	result, err := svc.CheckOrder(context.Background(), "order-1", CheckOptions{Download: true})
	require.NoError(t, err)

	// The manifest is not imagery and never downloads.
	assert.Equal(t, 1, result.Tally.Downloaded)
	assert.Contains(t, sink.files, "planetscope analytic/four_bands/kericho/2024_03_03/2024_03_05_101502.tiff")

	saved, err := store.Get("order-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusSuccess, saved.Status)
}

func TestCheckOrder_OneImagePerWeek(t *testing.T) {
	store := newFakeStore()
	require.NoError(t, store.Save(&models.Order{
		OrderID: "order-1", AOIName: "kericho", OrderType: models.OrderTypeImagery,
		NumBands: 4, StartDate: "2024-03-01", EndDate: "2024-03-31", Status: models.StatusRunning,
	}))
	api := newFakePlanet()
	api.statuses["order-1"] = &planet.OrderStatus{
		ID: "order-1", State: planet.StateSuccess,
		Results: []planet.ResultLink{
			// Thursday and Tuesday of the same week; the earlier wins.
			{Name: "files/20240307_093011_42_2479_3B_AnalyticMS_SR_clip.tif", Location: "https://x/b"},
			{Name: "files/20240305_101502_89_2479_3B_AnalyticMS_SR_clip.tif", Location: "https://x/a"},
			{Name: "files/20240305_101502_89_2479_3B_udm2_clip.tif", Location: "https://x/u"},
			{Name: "files/20240305_101502_89_2479_3B_AnalyticMS_metadata_clip.xml", Location: "https://x/x"},
			// Next week.
			{Name: "files/20240312_101502_89_2479_3B_AnalyticMS_SR_clip.tif", Location: "https://x/c"},
		},
	}
	sink := newMemSink()
	fetcher := &fakeFetcher{}
	svc := newTestStatus(store, api, sink, fetcher)

	result, err := svc.CheckOrder(context.Background(), "order-1", CheckOptions{Download: true})
	require.NoError(t, err)

	assert.Equal(t, 2, result.Tally.Downloaded)
	assert.Equal(t, 0, result.Tally.Failed)
	assert.Contains(t, sink.files, "planetscope analytic/four_bands/kericho/2024_03_03/2024_03_05_101502.tiff")
	assert.Contains(t, sink.files, "planetscope analytic/four_bands/kericho/2024_03_10/2024_03_12_101502.tiff")
	assert.ElementsMatch(t, []string{"https://x/a", "https://x/c"}, fetcher.fetched)
}

func TestCheckOrder_DownloadsBasemapLayout(t *testing.T) {
	store := newFakeStore()
	require.NoError(t, store.Save(&models.Order{
		OrderID: "order-2", AOIName: "kericho", OrderType: models.OrderTypeBasemap,
		MosaicName: "ps_monthly_2024_01", Status: models.StatusRunning,
	}))
	api := newFakePlanet()
	api.statuses["order-2"] = &planet.OrderStatus{
		ID: "order-2", State: planet.StateSuccess, SourceType: "basemaps",
		Results: []planet.ResultLink{{Name: "quad-1.tif", Location: "https://x/q1"}},
	}
	sink := newMemSink()
	svc := newTestStatus(store, api, sink, &fakeFetcher{})

	result, err := svc.CheckOrder(context.Background(), "order-2", CheckOptions{Download: true})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Tally.Downloaded)
	assert.Contains(t, sink.files, "basemaps/kericho/ps_monthly_2024_01/quad-1.tif")
}

func TestCheckOrder_NoDownloadForPendingStates(t *testing.T) {
	store := newFakeStore()
	require.NoError(t, store.Save(&models.Order{
		OrderID: "order-1", AOIName: "kericho", OrderType: models.OrderTypeImagery, Status: models.StatusQueued,
	}))
	api := newFakePlanet()
	api.statuses["order-1"] = &planet.OrderStatus{
		ID: "order-1", State: planet.StateRunning,
		Results: []planet.ResultLink{{Name: "early.tif", Location: "https://x/e"}},
	}
	fetcher := &fakeFetcher{}
	svc := newTestStatus(store, api, newMemSink(), fetcher)

	_, err := svc.CheckOrder(context.Background(), "order-1", CheckOptions{Download: true})
	require.NoError(t, err)
	assert.Empty(t, fetcher.fetched, "running orders must not trigger downloads")
}

func TestCheckOrder_PartialStillDownloads(t *testing.T) {
	store := newFakeStore()
	require.NoError(t, store.Save(&models.Order{
		OrderID: "order-1", AOIName: "kericho", OrderType: models.OrderTypeImagery, NumBands: 4,
		Status: models.StatusRunning,
	}))
	api := newFakePlanet()
	api.statuses["order-1"] = &planet.OrderStatus{
		ID: "order-1", State: planet.StatePartial,
		Results: []planet.ResultLink{{Name: "20240305_101502_89_2479_3B.tif", Location: "https://x/a"}},
	}
	sink := newMemSink()
	svc := newTestStatus(store, api, sink, &fakeFetcher{})

	result, err := svc.CheckOrder(context.Background(), "order-1", CheckOptions{Download: true})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Tally.Downloaded)
}

func TestBatchCheck_SkipsTerminalOrders(t *testing.T) {
	store := newFakeStore()
	api := newFakePlanet()

	add := func(id, status string) {
		require.NoError(t, store.Save(&models.Order{
			OrderID: id, AOIName: "kericho", OrderType: models.OrderTypeImagery,
			BatchID: "batch-a", Status: status,
		}))
		api.statuses[id] = &planet.OrderStatus{ID: id, State: planet.StateSuccess}
	}
	add("order-queued", models.StatusQueued)
	add("order-done", models.StatusSuccess)
	add("order-failed", models.StatusFailed)
	add("order-cancelled", models.StatusCancelled)

	svc := newTestStatus(store, api, newMemSink(), &fakeFetcher{})

	result, err := svc.BatchCheck(context.Background(), "batch-a", false, CheckOptions{})
	require.NoError(t, err)
	assert.Len(t, result.Checked, 1)
	assert.Equal(t, 3, result.Skipped)

	// recheck revisits successful orders but never failed or cancelled.
	result, err = svc.BatchCheck(context.Background(), "batch-a", true, CheckOptions{})
	require.NoError(t, err)
	assert.Len(t, result.Checked, 2)
	assert.Equal(t, 2, result.Skipped)
}

func TestBatchCheck_EmptyBatch(t *testing.T) {
	svc := newTestStatus(newFakeStore(), newFakePlanet(), newMemSink(), &fakeFetcher{})
	_, err := svc.BatchCheck(context.Background(), "ghost", false, CheckOptions{})
	assert.Error(t, err)
}

func TestPendingSweep(t *testing.T) {
	store := newFakeStore()
	api := newFakePlanet()
	require.NoError(t, store.Save(&models.Order{
		OrderID: "order-1", AOIName: "kericho", OrderType: models.OrderTypeImagery, Status: models.StatusQueued,
	}))
	api.statuses["order-1"] = &planet.OrderStatus{ID: "order-1", State: planet.StateSuccess}
	// An order the provider no longer knows about.
	require.NoError(t, store.Save(&models.Order{
		OrderID: "order-gone", AOIName: "nandi", OrderType: models.OrderTypeImagery, Status: models.StatusRunning,
	}))

	svc := newTestStatus(store, api, newMemSink(), &fakeFetcher{})

	pending := []models.Order{
		{OrderID: "order-1"},
		{OrderID: "order-gone"},
	}
	results := svc.PendingSweep(context.Background(), pending, CheckOptions{})
	require.Len(t, results, 1)
	assert.Equal(t, planet.StateSuccess, results[0].State)
}
