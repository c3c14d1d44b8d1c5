// Package engine executes schema-constrained CRUD and batch operations
// against the data store. Every caller-supplied identifier passes the
// whitelist gate before a statement is built, every literal travels as a
// bound parameter, and every attempt lands in the audit trail.
package engine

import (
	"context"
	"log/slog"
	"time"

	"datagate/internal/db"
	"datagate/internal/domain"
	"datagate/internal/schema"
	"datagate/internal/sqlbuilder"
	"datagate/internal/validate"
)

// Engine is the data-access engine. It is safe for concurrent use.
type Engine struct {
	registry  *schema.Registry
	store     *db.Store
	validator *validate.Validator
	recorder  domain.AuditRecorder
	logger    *slog.Logger
}

// New assembles an Engine over the given whitelist registry and store.
func New(registry *schema.Registry, store *db.Store, recorder domain.AuditRecorder, logger *slog.Logger) *Engine {
	return &Engine{
		registry:  registry,
		store:     store,
		validator: validate.New(),
		recorder:  recorder,
		logger:    logger,
	}
}

// QueryRequest describes one read. Filter, OrderBy, Columns, Limit, and
// Offset are all optional; a zero Limit selects the default page size.
type QueryRequest struct {
	Table   string
	Columns []string
	Filter  map[string]interface{}
	OrderBy []domain.SortKey
	Limit   int
	Offset  int
}

// InsertRequest describes one single-row insert.
type InsertRequest struct {
	Table string
	Data  domain.Record
}

// UpdateRequest describes one filtered update. PerRecordAudit asks for
// one audit entry per affected record instead of one per call.
type UpdateRequest struct {
	Table          string
	Data           domain.Record
	Filter         map[string]interface{}
	PerRecordAudit bool
}

// DeleteRequest describes one filtered delete. Soft selects the
// soft-delete form when the table supports it; unsupported tables fall
// back to a hard delete.
type DeleteRequest struct {
	Table          string
	Filter         map[string]interface{}
	Soft           bool
	PerRecordAudit bool
}

// Query runs a validated read and returns the matched page plus the
// unpaginated total.
func (e *Engine) Query(ctx context.Context, req QueryRequest) (result *domain.QueryResult, err error) {
	start := time.Now()
	defer func() { e.audit(ctx, domain.OpRead, req.Table, start, nil, nil, false, err) }()

	table, err := e.registry.ValidateTable(req.Table)
	if err != nil {
		return nil, err
	}
	if err = e.registry.ValidateTableAccess(table, domain.OpRead); err != nil {
		return nil, err
	}
	if err = e.registry.ValidateColumns(table, req.Columns); err != nil {
		return nil, err
	}
	if err = e.registry.ValidateFilterKeys(table, req.Filter); err != nil {
		return nil, err
	}

	conditions, err := domain.ParseFilter(req.Filter)
	if err != nil {
		return nil, err
	}
	orderBy, err := e.registry.ValidateOrderBy(table, req.OrderBy)
	if err != nil {
		return nil, err
	}
	limit := req.Limit
	if limit == 0 {
		limit = domain.DefaultLimit
	}
	if err = e.registry.ValidatePagination(limit, req.Offset); err != nil {
		return nil, err
	}

	descriptor := e.registry.Descriptor(table)
	spec := domain.QuerySpec{
		Table:   table,
		Columns: req.Columns,
		Filter:  conditions,
		OrderBy: orderBy,
		Limit:   limit,
		Offset:  req.Offset,
	}

	selectStmt, err := sqlbuilder.Select(descriptor, spec)
	if err != nil {
		return nil, err
	}
	countStmt, err := sqlbuilder.Count(descriptor, conditions)
	if err != nil {
		return nil, err
	}

	records, err := queryRecords(ctx, e.store.Read, selectStmt)
	if err != nil {
		err = classifyStoreError(domain.OpRead, table, err)
		return nil, err
	}
	var total int64
	if err = e.store.Read.QueryRowContext(ctx, countStmt.Text, countStmt.Args...).Scan(&total); err != nil {
		err = classifyStoreError(domain.OpRead, table, err)
		return nil, err
	}

	return &domain.QueryResult{Records: records, Count: len(records), TotalCount: total}, nil
}

// Insert validates and persists one record, returning the stored row.
func (e *Engine) Insert(ctx context.Context, req InsertRequest) (record domain.Record, err error) {
	start := time.Now()
	var ids []string
	var changes *string
	defer func() { e.audit(ctx, domain.OpInsert, req.Table, start, ids, changes, false, err) }()

	descriptor, err := e.prepareMutation(req.Table, domain.OpInsert, "INSERT")
	if err != nil {
		return nil, err
	}
	if err = e.registry.ValidateData(descriptor.Name, req.Data); err != nil {
		return nil, err
	}
	if err = e.validator.ValidateInsert(ctx, e.store.Write, descriptor, req.Data); err != nil {
		return nil, err
	}

	stmt, err := sqlbuilder.Insert(descriptor, req.Data)
	if err != nil {
		return nil, err
	}
	rows, err := queryRecords(ctx, e.store.Write, stmt)
	if err != nil {
		err = classifyStoreError(domain.OpInsert, descriptor.Name, err)
		return nil, err
	}
	if len(rows) == 0 {
		err = &domain.StoreError{Message: "INSERT on table " + descriptor.Name + " returned no row"}
		return nil, err
	}

	record = rows[0]
	ids = recordIDs(descriptor, rows)
	changes = changesJSON("after", record)
	return record, nil
}

// Update applies a filtered mutation and returns the affected rows.
// Matching zero rows is a successful outcome with an empty result.
func (e *Engine) Update(ctx context.Context, req UpdateRequest) (records []domain.Record, err error) {
	start := time.Now()
	var ids []string
	var changes *string
	defer func() { e.audit(ctx, domain.OpUpdate, req.Table, start, ids, changes, req.PerRecordAudit, err) }()

	descriptor, err := e.prepareMutation(req.Table, domain.OpUpdate, "UPDATE")
	if err != nil {
		return nil, err
	}
	if err = e.registry.ValidateData(descriptor.Name, req.Data); err != nil {
		return nil, err
	}
	if err = e.registry.ValidateWhereClause(descriptor.Name, "UPDATE", req.Filter); err != nil {
		return nil, err
	}
	conditions, err := domain.ParseFilter(req.Filter)
	if err != nil {
		return nil, err
	}
	if err = e.validator.ValidateUpdate(ctx, e.store.Write, descriptor, req.Data, conditions); err != nil {
		return nil, err
	}

	stmt, err := sqlbuilder.Update(descriptor, req.Data, conditions)
	if err != nil {
		return nil, err
	}
	records, err = queryRecords(ctx, e.store.Write, stmt)
	if err != nil {
		err = classifyStoreError(domain.OpUpdate, descriptor.Name, err)
		return nil, err
	}

	ids = recordIDs(descriptor, records)
	changes = changesJSON("after", records)
	return records, nil
}

// Delete removes or soft-deletes the filtered rows, returning them.
func (e *Engine) Delete(ctx context.Context, req DeleteRequest) (records []domain.Record, err error) {
	start := time.Now()
	var ids []string
	var changes *string
	defer func() { e.audit(ctx, domain.OpDelete, req.Table, start, ids, changes, req.PerRecordAudit, err) }()

	descriptor, err := e.prepareMutation(req.Table, domain.OpDelete, "DELETE")
	if err != nil {
		return nil, err
	}
	if err = e.registry.ValidateWhereClause(descriptor.Name, "DELETE", req.Filter); err != nil {
		return nil, err
	}
	conditions, err := domain.ParseFilter(req.Filter)
	if err != nil {
		return nil, err
	}

	var stmt sqlbuilder.Statement
	if req.Soft && descriptor.SoftDeleteCapable {
		stmt, err = sqlbuilder.SoftDelete(descriptor, conditions)
	} else {
		stmt, err = sqlbuilder.Delete(descriptor, conditions)
	}
	if err != nil {
		return nil, err
	}

	records, err = queryRecords(ctx, e.store.Write, stmt)
	if err != nil {
		err = classifyStoreError(domain.OpDelete, descriptor.Name, err)
		return nil, err
	}

	ids = recordIDs(descriptor, records)
	changes = changesJSON("before", records)
	return records, nil
}

// prepareMutation runs the table-level gates shared by every mutation:
// whitelist, access policy, read-only.
func (e *Engine) prepareMutation(table string, op domain.Operation, verb string) (*domain.TableDescriptor, error) {
	table, err := e.registry.ValidateTable(table)
	if err != nil {
		return nil, err
	}
	if err := e.registry.ValidateTableAccess(table, op); err != nil {
		return nil, err
	}
	if err := e.registry.ValidateNotReadOnly(table, verb); err != nil {
		return nil, err
	}
	return e.registry.Descriptor(table), nil
}

// audit hands the attempt to the background recorder. perRecord splits
// a multi-row mutation into one entry per affected record.
func (e *Engine) audit(ctx context.Context, op domain.Operation, table string, start time.Time, ids []string, changes *string, perRecord bool, err error) {
	if e.recorder == nil {
		return
	}

	actor := domain.ActorFromContext(ctx)
	duration := time.Since(start).Milliseconds()

	var detail *string
	if err != nil {
		msg := err.Error()
		detail = &msg
	}

	build := func(recordIDs []string) *domain.AuditEntry {
		return &domain.AuditEntry{
			Operation:   op,
			TableName:   table,
			RecordIDs:   recordIDs,
			Actor:       actor,
			Success:     err == nil,
			ErrorDetail: detail,
			DurationMs:  duration,
			Changes:     changes,
		}
	}

	if perRecord && err == nil && len(ids) > 1 {
		for _, id := range ids {
			e.recorder.Record(build([]string{id}))
		}
		return
	}
	e.recorder.Record(build(ids))
}
