package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path"
	"sort"
	"strings"

	"flowzero/internal/database"
	"flowzero/internal/dates"
	"flowzero/internal/downloader"
	"flowzero/internal/models"
	"flowzero/internal/planet"
	"flowzero/internal/storage"
)

// StatusService polls provider order state, persists it, and downloads
// finished deliverables.
type StatusService struct {
	store  orderStore
	planet planetAPI
	engine *downloader.Engine
	sink   storage.Sink
}

func NewStatusService(store orderStore, api planetAPI, engine *downloader.Engine, sink storage.Sink) *StatusService {
	return &StatusService{store: store, planet: api, engine: engine, sink: sink}
}

// CheckOptions tune a status check.
type CheckOptions struct {
	Download  bool
	Overwrite bool
}

// CheckResult is the outcome of one order check.
type CheckResult struct {
	OrderID    string
	State      string
	ErrorHints []string
	Tally      downloader.Tally
}

// CheckOrder polls one order and persists whatever state the provider
// reports. Orders unknown to the local table are still checked and
// their files still downloaded; only the persistence step is skipped.
func (s *StatusService) CheckOrder(ctx context.Context, orderID string, opts CheckOptions) (*CheckResult, error) {
	status, err := s.planet.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	result := &CheckResult{OrderID: orderID, State: status.State, ErrorHints: status.ErrorHints}

	// The provider's response body is stored verbatim, never rebuilt
	// from the parsed view.
	if err := s.store.UpdateStatus(orderID, status.State, status.Raw); err != nil {
		if !errors.Is(err, database.ErrNotFound) {
			return nil, err
		}
		log.Printf("order %s is not in the local table, state %s not persisted", orderID, status.State)
	}

	if !opts.Download || !downloadable(status.State) {
		return result, nil
	}

	order, err := s.store.Get(orderID)
	if err != nil && !errors.Is(err, database.ErrNotFound) {
		return nil, err
	}
	tasks := buildTasks(order, status)
	if len(tasks) == 0 {
		return result, nil
	}

	for r := range s.engine.DownloadBatch(ctx, tasks, s.sink, opts.Overwrite) {
		result.Tally.Add(r)
		if r.Err != nil {
			log.Printf("download failed for %s: %v", r.Destination, r.Err)
		}
	}
	log.Printf("order %s: %d downloaded, %d skipped, %d failed",
		orderID, result.Tally.Downloaded, result.Tally.Skipped, result.Tally.Failed)
	return result, nil
}

func downloadable(state string) bool {
	return state == planet.StateSuccess || state == planet.StatePartial
}

// buildTasks maps result links to sink destinations. Imagery keeps one
// image per acquisition week; basemaps are grouped per mosaic. order
// may be nil for orders outside the local table, in which case imagery
// layout with an "unknown" site is used.
func buildTasks(order *models.Order, status *planet.OrderStatus) []downloader.Task {
	aoiName := "unknown"
	bands := 4
	if order != nil {
		aoiName = order.AOIName
		if order.NumBands != 0 {
			bands = order.NumBands
		}
	}

	if status.SourceType == "basemaps" || (order != nil && order.OrderType == models.OrderTypeBasemap) {
		mosaic := "mosaic"
		if order != nil && order.MosaicName != "" {
			mosaic = order.MosaicName
		}
		tasks := make([]downloader.Task, 0, len(status.Results))
		for _, link := range status.Results {
			dest := path.Join("basemaps", aoiName, mosaic, path.Base(link.Name))
			tasks = append(tasks, downloader.Task{URL: link.Location, Destination: dest})
		}
		return tasks
	}
	return imageryTasks(aoiName, bands, status.Results)
}

type sceneImage struct {
	weekStart string
	date      string
	sceneID   string
	url       string
}

// imageryTasks picks the earliest usable image per acquisition week and
// drops UDM masks, sidecar files and anything without a parseable date.
// Targets are renamed to {date}_{scene_id}.tiff under the Sunday folder
// starting their week.
func imageryTasks(aoiName string, bands int, links []planet.ResultLink) []downloader.Task {
	bandDir := "four_bands"
	if bands == 8 {
		bandDir = "eight_bands"
	}
	root := path.Join("planetscope analytic", bandDir, aoiName)

	var images []sceneImage
	seen := make(map[string]bool)
	for _, link := range links {
		name := path.Base(link.Name)
		if seen[name] {
			continue
		}
		seen[name] = true

		lower := strings.ToLower(name)
		if !strings.HasSuffix(lower, ".tif") || strings.Contains(lower, "udm") {
			continue
		}
		date := dates.DateFromFilename(name)
		if date == "" {
			log.Printf("no acquisition date in %s, skipping", name)
			continue
		}
		sceneID := dates.SceneIDFromFilename(name)
		if sceneID == "" {
			sceneID = "unknown"
		}
		images = append(images, sceneImage{
			weekStart: dates.WeekStart(date),
			date:      date,
			sceneID:   sceneID,
			url:       link.Location,
		})
	}

	sort.Slice(images, func(i, j int) bool {
		if images[i].weekStart != images[j].weekStart {
			return images[i].weekStart < images[j].weekStart
		}
		return images[i].date < images[j].date
	})

	var tasks []downloader.Task
	picked := make(map[string]bool)
	for _, img := range images {
		if picked[img.weekStart] {
			continue
		}
		picked[img.weekStart] = true
		dest := path.Join(root, img.weekStart, img.date+"_"+img.sceneID+".tiff")
		tasks = append(tasks, downloader.Task{URL: img.url, Destination: dest})
	}
	return tasks
}

// BatchCheckResult aggregates a batch status sweep.
type BatchCheckResult struct {
	BatchID string
	Checked []CheckResult
	Skipped int
	Failed  int
}

// BatchCheck polls every order in a batch. Orders already terminal are
// not re-polled: failed and cancelled orders never, successful orders
// only when recheck is set (to re-run downloads).
func (s *StatusService) BatchCheck(ctx context.Context, batchID string, recheck bool, opts CheckOptions) (*BatchCheckResult, error) {
	orders, err := s.store.OrdersInBatch(batchID)
	if err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return nil, fmt.Errorf("batch %s has no orders", batchID)
	}

	result := &BatchCheckResult{BatchID: batchID}
	for _, o := range orders {
		switch o.Status {
		case models.StatusFailed, models.StatusCancelled:
			result.Skipped++
			continue
		case models.StatusSuccess:
			if !recheck {
				result.Skipped++
				continue
			}
		}

		check, err := s.CheckOrder(ctx, o.OrderID, opts)
		if err != nil {
			log.Printf("failed to check order %s: %v", o.OrderID, err)
			result.Failed++
			continue
		}
		result.Checked = append(result.Checked, *check)
	}
	return result, nil
}

// PendingSweep polls every non-terminal order in the table.
func (s *StatusService) PendingSweep(ctx context.Context, pending []models.Order, opts CheckOptions) []CheckResult {
	var results []CheckResult
	for _, o := range pending {
		check, err := s.CheckOrder(ctx, o.OrderID, opts)
		if err != nil {
			log.Printf("failed to check order %s: %v", o.OrderID, err)
			continue
		}
		results = append(results, *check)
	}
	return results
}
