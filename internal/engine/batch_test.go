package engine

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"datagate/internal/domain"
)

func productRecord(sku string) domain.Record {
	return domain.Record{"sku": sku, "name": "Widget " + sku, "price": 9.5}
}

func TestBatchInsert_AllValid(t *testing.T) {
	e, _ := newTestEngine(t)

	result, err := e.BatchInsert(context.Background(), "products", []domain.Record{
		productRecord("sku_a"), productRecord("sku_b"), productRecord("sku_c"),
	})
	require.NoError(t, err)

	assert.Equal(t, 3, result.Count)
	require.Len(t, result.IDs, 3)
	seen := map[string]bool{}
	for _, id := range result.IDs {
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}

func TestBatchInsert_OneInvalidRollsBackAll(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	_, err := e.BatchInsert(ctx, "products", []domain.Record{
		productRecord("sku_a"),
		productRecord("sku_b"),
		{"sku": "sku_c", "price": 1}, // missing required name
	})

	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)

	result, err := e.Query(ctx, QueryRequest{Table: "products"})
	require.NoError(t, err)
	assert.Zero(t, result.Count, "no records may survive a failed batch")
}

func TestBatchInsert_RetryWithInvalidItemLeavesPriorState(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	first, err := e.BatchInsert(ctx, "products", []domain.Record{
		productRecord("sku_a"), productRecord("sku_b"), productRecord("sku_c"),
	})
	require.NoError(t, err)
	assert.Equal(t, 3, first.Count)

	_, err = e.BatchInsert(ctx, "products", []domain.Record{
		productRecord("sku_d"),
		{"sku": "sku_e", "price": 1}, // missing required name
	})
	require.Error(t, err)

	result, err := e.Query(ctx, QueryRequest{Table: "products"})
	require.NoError(t, err)
	assert.Equal(t, 3, result.Count, "failed batch must leave prior state unchanged")
}

func TestBatchInsert_SizeBounds(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	var bserr *domain.BatchSizeError
	_, err := e.BatchInsert(ctx, "products", nil)
	require.ErrorAs(t, err, &bserr)

	oversized := make([]domain.Record, MaxBatchSize+1)
	for i := range oversized {
		oversized[i] = productRecord("sku")
	}
	_, err = e.BatchInsert(ctx, "products", oversized)
	require.ErrorAs(t, err, &bserr)
}

func TestBatchInsert_UniquenessSeesEarlierItems(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	// The duplicate sku collides with an item inserted earlier in the
	// same transaction; the pre-check must see uncommitted rows.
	_, err := e.BatchInsert(ctx, "products", []domain.Record{
		productRecord("sku_a"),
		productRecord("sku_a"),
	})

	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)

	result, err := e.Query(ctx, QueryRequest{Table: "products"})
	require.NoError(t, err)
	assert.Zero(t, result.Count)
}

func TestBatchInsert_ForeignKeyPreCheckInsideTransaction(t *testing.T) {
	e, _ := newTestEngine(t)

	_, err := e.BatchInsert(context.Background(), "orders", []domain.Record{
		{"customer_id": 999},
	})

	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestBatchUpdate_AppliesAllItems(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	seed, err := e.BatchInsert(ctx, "products", []domain.Record{
		productRecord("sku_a"), productRecord("sku_b"),
	})
	require.NoError(t, err)

	result, err := e.BatchUpdate(ctx, "products", []BatchUpdateItem{
		{Data: domain.Record{"stock": 5}, Filter: map[string]interface{}{"id": seed.Records[0]["id"]}},
		{Data: domain.Record{"stock": 7}, Filter: map[string]interface{}{"id": seed.Records[1]["id"]}},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Count)

	check, err := e.Query(ctx, QueryRequest{
		Table:  "products",
		Filter: map[string]interface{}{"stock": map[string]interface{}{"op": "gt", "value": 0}},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, check.Count)
}

func TestBatchUpdate_BadItemRollsBackAll(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	seed, err := e.BatchInsert(ctx, "products", []domain.Record{
		productRecord("sku_a"), productRecord("sku_b"),
	})
	require.NoError(t, err)

	_, err = e.BatchUpdate(ctx, "products", []BatchUpdateItem{
		{Data: domain.Record{"stock": 5}, Filter: map[string]interface{}{"id": seed.Records[0]["id"]}},
		{Data: domain.Record{"stock": 7}}, // empty filter
	})

	var mferr *domain.MissingFilterError
	require.ErrorAs(t, err, &mferr)

	check, err := e.Query(ctx, QueryRequest{
		Table:  "products",
		Filter: map[string]interface{}{"stock": map[string]interface{}{"op": "gt", "value": 0}},
	})
	require.NoError(t, err)
	assert.Zero(t, check.Count, "partial batch application must not be visible")
}

func TestBatchDelete_RemovesAllMatches(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	seed, err := e.BatchInsert(ctx, "products", []domain.Record{
		productRecord("sku_a"), productRecord("sku_b"), productRecord("sku_c"),
	})
	require.NoError(t, err)

	result, err := e.BatchDelete(ctx, "products", []map[string]interface{}{
		{"id": seed.Records[0]["id"]},
		{"id": seed.Records[1]["id"]},
	}, false)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Count)

	check, err := e.Query(ctx, QueryRequest{Table: "products"})
	require.NoError(t, err)
	assert.Equal(t, 1, check.Count)
}

func TestBatchDelete_SoftStampsRows(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	alice := insertCustomer(t, e, "Alice", "alice@example.com")
	bob := insertCustomer(t, e, "Bob", "bob@example.com")

	result, err := e.BatchDelete(ctx, "customers", []map[string]interface{}{
		{"id": alice["id"]},
		{"id": bob["id"]},
	}, true)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Count)

	check, err := e.Query(ctx, QueryRequest{
		Table:  "customers",
		Filter: map[string]interface{}{"deleted_at": map[string]interface{}{"op": "not_null"}},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, check.Count)
}

func TestBatch_OneAuditEntryPerCall(t *testing.T) {
	e, recorder := newTestEngine(t)

	_, err := e.BatchInsert(context.Background(), "products", []domain.Record{
		productRecord("sku_a"), productRecord("sku_b"),
	})
	require.NoError(t, err)

	entries := recorder.byOperation(domain.OpInsert)
	require.Len(t, entries, 1)
	assert.Len(t, entries[0].RecordIDs, 2)
}

func TestBatch_FailureIsAudited(t *testing.T) {
	e, recorder := newTestEngine(t)

	_, err := e.BatchInsert(context.Background(), "products", []domain.Record{
		{"sku": "sku_a"}, // missing name and price
	})
	require.Error(t, err)

	entries := recorder.byOperation(domain.OpInsert)
	require.Len(t, entries, 1)
	assert.False(t, entries[0].Success)
}

func TestExecuteTransaction_RollsBackOnError(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	sentinel := errors.New("abort")
	err := e.ExecuteTransaction(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "INSERT INTO products (sku, name, price) VALUES ('sku_x', 'Widget', 1)"); err != nil {
			return err
		}
		return sentinel
	})
	require.ErrorIs(t, err, sentinel)

	result, err := e.Query(ctx, QueryRequest{Table: "products"})
	require.NoError(t, err)
	assert.Zero(t, result.Count)
}

func TestExecuteTransaction_CommitsOnSuccess(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	err := e.ExecuteTransaction(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, "INSERT INTO products (sku, name, price) VALUES ('sku_x', 'Widget', 1)")
		return err
	})
	require.NoError(t, err)

	result, err := e.Query(ctx, QueryRequest{Table: "products"})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Count)
}
