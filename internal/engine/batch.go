package engine

import (
	"context"
	"database/sql"
	"time"

	"datagate/internal/domain"
	"datagate/internal/sqlbuilder"
)

// MaxBatchSize bounds the item count of one batch call.
const MaxBatchSize = 1000

// BatchResult summarizes one committed batch.
type BatchResult struct {
	Count   int
	IDs     []string
	Records []domain.Record
}

// BatchUpdateItem is one (payload, filter) pair of a batch update.
type BatchUpdateItem struct {
	Data   domain.Record
	Filter map[string]interface{}
}

// ExecuteTransaction runs work inside a single transaction on the write
// pool, committing on success and rolling back on any error. No partial
// application is ever visible to subsequent readers.
func (e *Engine) ExecuteTransaction(ctx context.Context, work func(tx *sql.Tx) error) error {
	tx, err := e.store.Write.BeginTx(ctx, nil)
	if err != nil {
		return classifyStoreError("BEGIN", "", err)
	}

	if err := work(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		_ = tx.Rollback()
		return classifyStoreError("COMMIT", "", err)
	}
	return nil
}

// BatchInsert persists every item in one transaction. Any single item's
// failure rolls back the entire batch.
func (e *Engine) BatchInsert(ctx context.Context, table string, items []domain.Record) (result *BatchResult, err error) {
	start := time.Now()
	var ids []string
	var changes *string
	defer func() { e.audit(ctx, domain.OpInsert, table, start, ids, changes, false, err) }()

	if err = validateBatchSize(len(items)); err != nil {
		return nil, err
	}
	descriptor, err := e.prepareMutation(table, domain.OpInsert, "INSERT")
	if err != nil {
		return nil, err
	}

	var inserted []domain.Record
	err = e.ExecuteTransaction(ctx, func(tx *sql.Tx) error {
		for _, item := range items {
			if err := e.registry.ValidateData(descriptor.Name, item); err != nil {
				return err
			}
			if err := e.validator.ValidateInsert(ctx, tx, descriptor, item); err != nil {
				return err
			}
			stmt, err := sqlbuilder.Insert(descriptor, item)
			if err != nil {
				return err
			}
			rows, err := queryRecords(ctx, tx, stmt)
			if err != nil {
				return classifyStoreError(domain.OpInsert, descriptor.Name, err)
			}
			inserted = append(inserted, rows...)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	ids = recordIDs(descriptor, inserted)
	changes = changesJSON("after", inserted)
	return &BatchResult{Count: len(inserted), IDs: ids, Records: inserted}, nil
}

// BatchUpdate applies every (payload, filter) pair in one transaction.
func (e *Engine) BatchUpdate(ctx context.Context, table string, items []BatchUpdateItem) (result *BatchResult, err error) {
	start := time.Now()
	var ids []string
	var changes *string
	defer func() { e.audit(ctx, domain.OpUpdate, table, start, ids, changes, false, err) }()

	if err = validateBatchSize(len(items)); err != nil {
		return nil, err
	}
	descriptor, err := e.prepareMutation(table, domain.OpUpdate, "UPDATE")
	if err != nil {
		return nil, err
	}

	var updated []domain.Record
	err = e.ExecuteTransaction(ctx, func(tx *sql.Tx) error {
		for _, item := range items {
			if err := e.registry.ValidateData(descriptor.Name, item.Data); err != nil {
				return err
			}
			if err := e.registry.ValidateWhereClause(descriptor.Name, "UPDATE", item.Filter); err != nil {
				return err
			}
			conditions, err := domain.ParseFilter(item.Filter)
			if err != nil {
				return err
			}
			if err := e.validator.ValidateUpdate(ctx, tx, descriptor, item.Data, conditions); err != nil {
				return err
			}
			stmt, err := sqlbuilder.Update(descriptor, item.Data, conditions)
			if err != nil {
				return err
			}
			rows, err := queryRecords(ctx, tx, stmt)
			if err != nil {
				return classifyStoreError(domain.OpUpdate, descriptor.Name, err)
			}
			updated = append(updated, rows...)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	ids = recordIDs(descriptor, updated)
	changes = changesJSON("after", updated)
	return &BatchResult{Count: len(updated), IDs: ids, Records: updated}, nil
}

// BatchDelete removes (or soft-deletes) the rows matched by every filter
// in one transaction.
func (e *Engine) BatchDelete(ctx context.Context, table string, filters []map[string]interface{}, soft bool) (result *BatchResult, err error) {
	start := time.Now()
	var ids []string
	var changes *string
	defer func() { e.audit(ctx, domain.OpDelete, table, start, ids, changes, false, err) }()

	if err = validateBatchSize(len(filters)); err != nil {
		return nil, err
	}
	descriptor, err := e.prepareMutation(table, domain.OpDelete, "DELETE")
	if err != nil {
		return nil, err
	}

	var deleted []domain.Record
	err = e.ExecuteTransaction(ctx, func(tx *sql.Tx) error {
		for _, filter := range filters {
			if err := e.registry.ValidateWhereClause(descriptor.Name, "DELETE", filter); err != nil {
				return err
			}
			conditions, err := domain.ParseFilter(filter)
			if err != nil {
				return err
			}

			var stmt sqlbuilder.Statement
			if soft && descriptor.SoftDeleteCapable {
				stmt, err = sqlbuilder.SoftDelete(descriptor, conditions)
			} else {
				stmt, err = sqlbuilder.Delete(descriptor, conditions)
			}
			if err != nil {
				return err
			}
			rows, err := queryRecords(ctx, tx, stmt)
			if err != nil {
				return classifyStoreError(domain.OpDelete, descriptor.Name, err)
			}
			deleted = append(deleted, rows...)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	ids = recordIDs(descriptor, deleted)
	changes = changesJSON("before", deleted)
	return &BatchResult{Count: len(deleted), IDs: ids, Records: deleted}, nil
}

func validateBatchSize(n int) error {
	if n < 1 || n > MaxBatchSize {
		return domain.ErrBatchSize("batch size %d is outside [1, %d]", n, MaxBatchSize)
	}
	return nil
}
