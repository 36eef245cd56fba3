// Package services ties the provider client, the order store, the
// scene selector and the download engine into the tool's operations.
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"

	"flowzero/internal/dates"
	"flowzero/internal/geometry"
	"flowzero/internal/models"
	"flowzero/internal/planet"
	"flowzero/internal/selection"
)

// ErrNoScenes means the search and selection yielded nothing to order.
var ErrNoScenes = errors.New("no scenes matched the selection criteria")

// DuplicateError reports a prior order covering the same site, window
// and order type.
type DuplicateError struct {
	Existing *models.Order
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("order %s already covers %s %s to %s (status %s)",
		e.Existing.OrderID, e.Existing.AOIName, e.Existing.StartDate, e.Existing.EndDate, e.Existing.Status)
}

// planetAPI is the slice of the provider client the services use.
type planetAPI interface {
	SearchScenes(ctx context.Context, geometry json.RawMessage, startDate, endDate string) ([]models.Scene, error)
	SubmitOrder(ctx context.Context, req planet.SubmitRequest) (string, error)
	GetOrder(ctx context.Context, orderID string) (*planet.OrderStatus, error)
	ListBasemaps(ctx context.Context, nameContains string) ([]planet.Mosaic, error)
	OrderBasemap(ctx context.Context, req planet.BasemapRequest) (string, error)
}

// orderStore is the slice of the database the services use.
type orderStore interface {
	Save(o *models.Order) error
	Get(orderID string) (*models.Order, error)
	FindExisting(aoiName, startDate, endDate, orderType string) (*models.Order, error)
	UpdateStatus(orderID, status string, metadata json.RawMessage) error
	OrdersInBatch(batchID string) ([]models.Order, error)
}

// SubmitService plans and places imagery and basemap orders.
type SubmitService struct {
	store            orderStore
	planet           planetAPI
	minCoveragePct   float64
	maxCloudCoverPct float64
}

func NewSubmitService(store orderStore, api planetAPI, minCoveragePct, maxCloudCoverPct float64) *SubmitService {
	return &SubmitService{
		store:            store,
		planet:           api,
		minCoveragePct:   minCoveragePct,
		maxCloudCoverPct: maxCloudCoverPct,
	}
}

// OrderRequest describes one imagery order to plan.
type OrderRequest struct {
	AOI        *geometry.AOI
	StartDate  string
	EndDate    string
	Cadence    dates.Cadence
	NumBands   int
	Clip       bool
	BatchID    string
	BatchOrder bool
	// Force skips the duplicate-order check.
	Force bool
}

// Plan is a priced, not yet placed order.
type Plan struct {
	Request        OrderRequest
	Bundle         string
	FallbackBundle string
	ScenesFound    int
	Scenes         []models.Scene
	QuotaHectares  float64
}

// PlanOrder checks for duplicates, searches, scores coverage and
// selects scenes, without spending quota. The duplicate check runs
// before the search so a repeat invocation costs no API traffic.
func (s *SubmitService) PlanOrder(ctx context.Context, req OrderRequest) (*Plan, error) {
	if err := planet.ValidateBandsForRange(req.NumBands, req.StartDate); err != nil {
		return nil, err
	}
	bundle, fallback, err := planet.BundleForBands(req.NumBands)
	if err != nil {
		return nil, err
	}

	if !req.Force {
		existing, err := s.store.FindExisting(req.AOI.Name, req.StartDate, req.EndDate, models.OrderTypeImagery)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return nil, &DuplicateError{Existing: existing}
		}
	}

	scenes, err := s.planet.SearchScenes(ctx, req.AOI.GeoJSON, req.StartDate, req.EndDate)
	if err != nil {
		return nil, err
	}

	for i := range scenes {
		if scenes[i].Geometry == nil {
			continue
		}
		coverage, err := geometry.Coverage(scenes[i].Geometry, req.AOI.Geom)
		if err != nil {
			log.Printf("skipping scene %s: %v", scenes[i].ID, err)
			continue
		}
		scenes[i].CoveragePct = coverage
	}

	selected, err := selection.Select(scenes, req.Cadence, s.minCoveragePct, s.maxCloudCoverPct)
	if err != nil {
		return nil, err
	}

	return &Plan{
		Request:        req,
		Bundle:         bundle,
		FallbackBundle: fallback,
		ScenesFound:    len(scenes),
		Scenes:         selected,
		// One selected scene consumes roughly the clipped AOI area.
		QuotaHectares: req.AOI.AreaSqKm * 100 * float64(len(selected)),
	}, nil
}

// PlaceOrder submits a plan to the provider and records it as queued.
func (s *SubmitService) PlaceOrder(ctx context.Context, plan *Plan) (*models.Order, error) {
	if len(plan.Scenes) == 0 {
		return nil, ErrNoScenes
	}
	req := plan.Request

	itemIDs := make([]string, len(plan.Scenes))
	for i, sc := range plan.Scenes {
		itemIDs[i] = sc.ID
	}

	submit := planet.SubmitRequest{
		Name:           fmt.Sprintf("%s_%s_%s", req.AOI.Name, req.StartDate, req.EndDate),
		ItemIDs:        itemIDs,
		ProductBundle:  plan.Bundle,
		FallbackBundle: plan.FallbackBundle,
	}
	if req.Clip {
		submit.ClipGeometry = req.AOI.GeoJSON
	}

	orderID, err := s.planet.SubmitOrder(ctx, submit)
	if err != nil {
		return nil, err
	}

	metadata, err := json.Marshal(map[string]interface{}{"scene_ids": itemIDs})
	if err != nil {
		return nil, fmt.Errorf("failed to encode order metadata: %w", err)
	}

	order := &models.Order{
		OrderID:        orderID,
		AOIName:        req.AOI.Name,
		OrderType:      models.OrderTypeImagery,
		BatchID:        req.BatchID,
		StartDate:      req.StartDate,
		EndDate:        req.EndDate,
		Status:         models.StatusQueued,
		NumBands:       req.NumBands,
		ProductBundle:  plan.Bundle,
		Clipped:        req.Clip,
		AOIAreaSqKm:    req.AOI.AreaSqKm,
		ScenesFound:    plan.ScenesFound,
		ScenesSelected: len(plan.Scenes),
		QuotaHectares:  plan.QuotaHectares,
		BatchOrder:     req.BatchOrder,
		Metadata:       metadata,
	}
	if plan.FallbackBundle != "" {
		order.ProductBundleOrder = plan.Bundle + "," + plan.FallbackBundle
	}
	if err := s.store.Save(order); err != nil {
		return nil, fmt.Errorf("order %s submitted but not recorded: %w", orderID, err)
	}
	log.Printf("submitted order %s for %s (%d scenes, %.0f ha)", orderID, req.AOI.Name, len(itemIDs), plan.QuotaHectares)
	return order, nil
}

// OrderBasemap places a basemap order clipped to the AOI and records it.
func (s *SubmitService) OrderBasemap(ctx context.Context, aoi *geometry.AOI, mosaicName string, force bool) (*models.Order, error) {
	if !force {
		existing, err := s.store.FindExisting(aoi.Name, mosaicName, mosaicName, models.OrderTypeBasemap)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return nil, &DuplicateError{Existing: existing}
		}
	}

	orderID, err := s.planet.OrderBasemap(ctx, planet.BasemapRequest{
		Name:       fmt.Sprintf("%s_%s", aoi.Name, mosaicName),
		MosaicName: mosaicName,
		Geometry:   aoi.GeoJSON,
	})
	if err != nil {
		return nil, err
	}

	order := &models.Order{
		OrderID:     orderID,
		AOIName:     aoi.Name,
		OrderType:   models.OrderTypeBasemap,
		StartDate:   mosaicName,
		EndDate:     mosaicName,
		Status:      models.StatusQueued,
		Clipped:     true,
		AOIAreaSqKm: aoi.AreaSqKm,
		MosaicName:  mosaicName,
	}
	if err := s.store.Save(order); err != nil {
		return nil, fmt.Errorf("basemap order %s submitted but not recorded: %w", orderID, err)
	}
	log.Printf("submitted basemap order %s for %s (%s)", orderID, aoi.Name, mosaicName)
	return order, nil
}

// ListBasemaps passes through to the provider.
func (s *SubmitService) ListBasemaps(ctx context.Context, nameContains string) ([]planet.Mosaic, error) {
	return s.planet.ListBasemaps(ctx, nameContains)
}

// BatchOptions tune a batch submission.
type BatchOptions struct {
	Cadence   dates.Cadence
	NumBands  int
	Clip      bool
	MaxMonths int
	DryRun    bool
	Force     bool
}

// BatchItem is the outcome for one site/window chunk of a batch.
type BatchItem struct {
	AOIName   string
	StartDate string
	EndDate   string
	Order     *models.Order
	Plan      *Plan
	Err       error
}

// BatchResult summarizes a whole batch submission.
type BatchResult struct {
	BatchID    string
	Items      []BatchItem
	Submitted  int
	Duplicates int
	NoScenes   int
	Failed     int
}

// BatchSubmit plans and places one order per site per date chunk. A
// failure on one chunk never aborts the rest; every chunk gets an item
// in the result.
func (s *SubmitService) BatchSubmit(ctx context.Context, features []geometry.BatchFeature, opts BatchOptions) (*BatchResult, error) {
	result := &BatchResult{BatchID: uuid.NewString()}

	for _, f := range features {
		chunks, err := dates.SubdivideRange(f.StartDate, f.EndDate, opts.MaxMonths)
		if err != nil {
			result.Failed++
			result.Items = append(result.Items, BatchItem{
				AOIName: f.SiteID, StartDate: f.StartDate, EndDate: f.EndDate, Err: err,
			})
			continue
		}

		aoi := &geometry.AOI{
			Name:     geometry.NormalizeAOIName(f.SiteID),
			Geom:     f.Geom,
			GeoJSON:  f.GeoJSON,
			AreaSqKm: f.AreaSqKm,
		}
		for _, chunk := range chunks {
			item := s.submitChunk(ctx, aoi, chunk, opts, result.BatchID)
			switch {
			case item.Err == nil && item.Order != nil:
				result.Submitted++
			case item.Err == nil && opts.DryRun:
				// Planned only.
			case errors.As(item.Err, new(*DuplicateError)):
				result.Duplicates++
			case errors.Is(item.Err, ErrNoScenes):
				result.NoScenes++
			default:
				result.Failed++
			}
			result.Items = append(result.Items, item)
		}
	}
	return result, nil
}

func (s *SubmitService) submitChunk(ctx context.Context, aoi *geometry.AOI, chunk dates.Range, opts BatchOptions, batchID string) BatchItem {
	item := BatchItem{AOIName: aoi.Name, StartDate: chunk.Start, EndDate: chunk.End}

	plan, err := s.PlanOrder(ctx, OrderRequest{
		AOI:        aoi,
		StartDate:  chunk.Start,
		EndDate:    chunk.End,
		Cadence:    opts.Cadence,
		NumBands:   opts.NumBands,
		Clip:       opts.Clip,
		BatchID:    batchID,
		BatchOrder: true,
		Force:      opts.Force,
	})
	if err != nil {
		item.Err = err
		return item
	}
	item.Plan = plan

	if opts.DryRun {
		return item
	}
	if len(plan.Scenes) == 0 {
		item.Err = ErrNoScenes
		return item
	}

	order, err := s.PlaceOrder(ctx, plan)
	if err != nil {
		item.Err = err
		return item
	}
	item.Order = order
	return item
}
