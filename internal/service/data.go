package service

import (
	"context"

	"datagate/internal/domain"
	"datagate/internal/engine"
)

// DataService is the API-facing seam over the secure engine. It keeps
// handlers free of engine types beyond the request structs.
type DataService struct {
	engine *engine.Engine
}

func NewDataService(eng *engine.Engine) *DataService {
	return &DataService{engine: eng}
}

func (s *DataService) Query(ctx context.Context, req engine.QueryRequest) (*domain.QueryResult, error) {
	return s.engine.Query(ctx, req)
}

func (s *DataService) Insert(ctx context.Context, req engine.InsertRequest) (domain.Record, error) {
	return s.engine.Insert(ctx, req)
}

func (s *DataService) Update(ctx context.Context, req engine.UpdateRequest) ([]domain.Record, error) {
	return s.engine.Update(ctx, req)
}

func (s *DataService) Delete(ctx context.Context, req engine.DeleteRequest) ([]domain.Record, error) {
	return s.engine.Delete(ctx, req)
}

func (s *DataService) BatchInsert(ctx context.Context, table string, items []domain.Record) (*engine.BatchResult, error) {
	return s.engine.BatchInsert(ctx, table, items)
}

func (s *DataService) BatchUpdate(ctx context.Context, table string, items []engine.BatchUpdateItem) (*engine.BatchResult, error) {
	return s.engine.BatchUpdate(ctx, table, items)
}

func (s *DataService) BatchDelete(ctx context.Context, table string, filters []map[string]interface{}, soft bool) (*engine.BatchResult, error) {
	return s.engine.BatchDelete(ctx, table, filters, soft)
}
