package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"flowzero/internal/database"
	"flowzero/internal/models"
	"flowzero/internal/planet"
)

type fakeStore struct {
	mu      sync.Mutex
	orders  map[string]*models.Order
	saveErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{orders: make(map[string]*models.Order)}
}

func (f *fakeStore) Save(o *models.Order) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *o
	f.orders[o.OrderID] = &cp
	return nil
}

func (f *fakeStore) Get(orderID string) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[orderID]
	if !ok {
		return nil, database.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (f *fakeStore) FindExisting(aoiName, startDate, endDate, orderType string) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, o := range f.orders {
		if o.AOIName == aoiName && o.StartDate == startDate && o.EndDate == endDate && o.OrderType == orderType {
			cp := *o
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) UpdateStatus(orderID, status string, metadata json.RawMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[orderID]
	if !ok {
		return database.ErrNotFound
	}
	o.Status = status
	if metadata != nil {
		o.Metadata = metadata
	}
	return nil
}

func (f *fakeStore) OrdersInBatch(batchID string) ([]models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Order
	for _, o := range f.orders {
		if o.BatchID == batchID {
			out = append(out, *o)
		}
	}
	return out, nil
}

type fakePlanet struct {
	scenes      []models.Scene
	searchErr   error
	searchCalls int

	submitted   []planet.SubmitRequest
	submitErr   error
	nextOrderID int

	statuses map[string]*planet.OrderStatus

	mosaics      []planet.Mosaic
	basemapReqs  []planet.BasemapRequest
	basemapError error
}

func newFakePlanet() *fakePlanet {
	return &fakePlanet{statuses: make(map[string]*planet.OrderStatus)}
}

func (f *fakePlanet) SearchScenes(_ context.Context, _ json.RawMessage, _, _ string) ([]models.Scene, error) {
	f.searchCalls++
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.scenes, nil
}

func (f *fakePlanet) SubmitOrder(_ context.Context, req planet.SubmitRequest) (string, error) {
	if f.submitErr != nil {
		return "", f.submitErr
	}
	f.submitted = append(f.submitted, req)
	f.nextOrderID++
	return fmt.Sprintf("order-%d", f.nextOrderID), nil
}

func (f *fakePlanet) GetOrder(_ context.Context, orderID string) (*planet.OrderStatus, error) {
	status, ok := f.statuses[orderID]
	if !ok {
		return nil, errors.New("unknown order")
	}
	return status, nil
}

func (f *fakePlanet) ListBasemaps(_ context.Context, _ string) ([]planet.Mosaic, error) {
	return f.mosaics, nil
}

func (f *fakePlanet) OrderBasemap(_ context.Context, req planet.BasemapRequest) (string, error) {
	if f.basemapError != nil {
		return "", f.basemapError
	}
	f.basemapReqs = append(f.basemapReqs, req)
	f.nextOrderID++
	return fmt.Sprintf("order-%d", f.nextOrderID), nil
}

type fakeFetcher struct {
	mu      sync.Mutex
	fetched []string
	failAll bool
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) (io.ReadCloser, int64, error) {
	f.mu.Lock()
	f.fetched = append(f.fetched, url)
	f.mu.Unlock()
	if f.failAll {
		return nil, 0, errors.New("fetch refused")
	}
	return io.NopCloser(strings.NewReader("bytes")), 5, nil
}

type memSink struct {
	mu    sync.Mutex
	files map[string]string
}

func newMemSink() *memSink {
	return &memSink{files: make(map[string]string)}
}

func (s *memSink) Exists(_ context.Context, dest string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.files[dest]
	return ok, nil
}

func (s *memSink) Write(_ context.Context, dest string, r io.Reader, _ int64) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.files[dest] = string(data)
	s.mu.Unlock()
	return nil
}
