package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"datagate/internal/audit"
	"datagate/internal/cache"
	"datagate/internal/db"
	"datagate/internal/db/repository"
	"datagate/internal/domain"
	"datagate/internal/engine"
	"datagate/internal/relationship"
	"datagate/internal/schema"
	"datagate/internal/service"
)

// setupTestServer wires a full stack against real SQLite stores and
// returns the server plus the audit repository for direct seeding.
func setupTestServer(t *testing.T) (*httptest.Server, *repository.AuditRepo) {
	t.Helper()

	store := db.OpenTestStore(t)
	auditDB := db.OpenTestAuditDB(t)
	auditRepo := repository.NewAuditRepo(auditDB)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	recorder := audit.NewRecorder(auditRepo, logger, 0)
	t.Cleanup(recorder.Close)

	registry, err := schema.NewRegistry(apiTestDescriptors(), domain.NewAccessPolicy(map[string][]domain.Operation{
		"customers": {domain.OpRead, domain.OpInsert, domain.OpUpdate, domain.OpDelete},
		"orders":    {domain.OpRead, domain.OpInsert, domain.OpUpdate, domain.OpDelete},
		"products":  {domain.OpRead, domain.OpInsert},
	}))
	require.NoError(t, err)

	eng := engine.New(registry, store, recorder, logger)
	introspector := relationship.NewSQLiteIntrospector(store.Read)
	schemas := service.NewSchemaService(registry, introspector, relationship.NewMapper(introspector), cache.New(time.Minute))

	h := NewHandler(service.NewDataService(eng), schemas, service.NewAuditService(auditRepo), logger)
	srv := httptest.NewServer(h.Routes())
	t.Cleanup(srv.Close)
	return srv, auditRepo
}

func apiTestDescriptors() []domain.TableDescriptor {
	return []domain.TableDescriptor{
		{
			Name:              "customers",
			PrimaryKey:        "id",
			SoftDeleteCapable: true,
			Columns: []domain.ColumnDescriptor{
				{Name: "id", Type: domain.ColInteger},
				{Name: "name", Type: domain.ColText, Required: true},
				{Name: "email", Type: domain.ColText, Format: domain.FormatEmail, Required: true, Unique: true},
				{Name: "credit_limit", Type: domain.ColReal, NonNegative: true},
				{Name: "created_at", Type: domain.ColTimestamp},
				{Name: "updated_at", Type: domain.ColTimestamp},
				{Name: "deleted_at", Type: domain.ColTimestamp},
			},
		},
		{
			Name:       "orders",
			PrimaryKey: "id",
			Columns: []domain.ColumnDescriptor{
				{Name: "id", Type: domain.ColInteger},
				{Name: "customer_id", Type: domain.ColInteger, Required: true, ForeignKey: &domain.ForeignKeyRef{Table: "customers", Column: "id"}},
				{Name: "status", Type: domain.ColText},
				{Name: "total", Type: domain.ColReal, NonNegative: true},
				{Name: "created_at", Type: domain.ColTimestamp},
				{Name: "updated_at", Type: domain.ColTimestamp},
			},
		},
		{
			Name:       "products",
			PrimaryKey: "id",
			Columns: []domain.ColumnDescriptor{
				{Name: "id", Type: domain.ColInteger},
				{Name: "sku", Type: domain.ColText, Required: true, Unique: true},
				{Name: "name", Type: domain.ColText, Required: true},
				{Name: "price", Type: domain.ColReal, Required: true, NonNegative: true},
				{Name: "stock", Type: domain.ColInteger, NonNegative: true},
			},
		},
	}
}

// doJSON issues a request with a JSON body and decodes the JSON reply.
func doJSON(t *testing.T, method, url string, body interface{}) (int, map[string]interface{}) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp.StatusCode, decoded
}

func insertTestCustomer(t *testing.T, srv *httptest.Server, name, email string) float64 {
	t.Helper()
	status, body := doJSON(t, http.MethodPost, srv.URL+"/data/customers/", map[string]interface{}{
		"data": map[string]interface{}{"name": name, "email": email},
	})
	require.Equal(t, http.StatusCreated, status, "insert %s: %v", email, body)
	record := body["record"].(map[string]interface{})
	return record["id"].(float64)
}

func TestInsertAndQuery(t *testing.T) {
	srv, _ := setupTestServer(t)

	id := insertTestCustomer(t, srv, "Jane", "jane@example.com")
	assert.Greater(t, id, float64(0))

	status, body := doJSON(t, http.MethodPost, srv.URL+"/data/customers/query", map[string]interface{}{
		"filter": map[string]interface{}{"email": "jane@example.com"},
	})
	require.Equal(t, http.StatusOK, status)
	records := body["records"].([]interface{})
	require.Len(t, records, 1)
	assert.Equal(t, "Jane", records[0].(map[string]interface{})["name"])
	assert.Equal(t, float64(1), body["count"])
	assert.Equal(t, float64(1), body["total_count"])
}

func TestQuery_EmptyBodyAllowed(t *testing.T) {
	srv, _ := setupTestServer(t)

	resp, err := http.Post(srv.URL+"/data/customers/query", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestInsert_ValidationErrorsAggregated(t *testing.T) {
	srv, _ := setupTestServer(t)

	status, body := doJSON(t, http.MethodPost, srv.URL+"/data/customers/", map[string]interface{}{
		"data": map[string]interface{}{"email": "not-an-email", "credit_limit": -5},
	})

	require.Equal(t, http.StatusBadRequest, status)
	fields := body["fields"].([]interface{})
	assert.Len(t, fields, 3) // missing name, bad email, negative credit_limit
}

func TestInsert_DuplicateEmailConflictShape(t *testing.T) {
	srv, _ := setupTestServer(t)
	insertTestCustomer(t, srv, "Jane", "jane@example.com")

	status, body := doJSON(t, http.MethodPost, srv.URL+"/data/customers/", map[string]interface{}{
		"data": map[string]interface{}{"name": "Other", "email": "jane@example.com"},
	})

	// The uniqueness pre-check reports it as a validation failure.
	require.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, fmt.Sprint(body["fields"]), "email")
}

func TestUnknownTableRejected(t *testing.T) {
	srv, _ := setupTestServer(t)

	status, body := doJSON(t, http.MethodPost, srv.URL+"/data/secrets/query", map[string]interface{}{})
	require.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, body["error"], "secrets")
}

func TestAccessDeniedIs403(t *testing.T) {
	srv, _ := setupTestServer(t)

	status, _ := doJSON(t, http.MethodDelete, srv.URL+"/data/products/", map[string]interface{}{
		"filter": map[string]interface{}{"sku": "gone"},
	})
	assert.Equal(t, http.StatusForbidden, status)
}

func TestUpdate_RequiresFilter(t *testing.T) {
	srv, _ := setupTestServer(t)
	insertTestCustomer(t, srv, "Jane", "jane@example.com")

	status, body := doJSON(t, http.MethodPatch, srv.URL+"/data/customers/", map[string]interface{}{
		"data": map[string]interface{}{"name": "Renamed"},
	})
	require.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, body["error"], "filter")
}

func TestUpdate_AppliesAndReturnsRows(t *testing.T) {
	srv, _ := setupTestServer(t)
	id := insertTestCustomer(t, srv, "Jane", "jane@example.com")

	status, body := doJSON(t, http.MethodPatch, srv.URL+"/data/customers/", map[string]interface{}{
		"data":   map[string]interface{}{"name": "Renamed"},
		"filter": map[string]interface{}{"id": id},
	})
	require.Equal(t, http.StatusOK, status)
	records := body["records"].([]interface{})
	require.Len(t, records, 1)
	assert.Equal(t, "Renamed", records[0].(map[string]interface{})["name"])
}

func TestUpdate_ZeroMatchesIsSuccess(t *testing.T) {
	srv, _ := setupTestServer(t)

	status, body := doJSON(t, http.MethodPatch, srv.URL+"/data/customers/", map[string]interface{}{
		"data":   map[string]interface{}{"name": "Nobody"},
		"filter": map[string]interface{}{"email": "missing@example.com"},
	})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(0), body["count"])
}

func TestDelete_SoftMarksRow(t *testing.T) {
	srv, _ := setupTestServer(t)
	id := insertTestCustomer(t, srv, "Jane", "jane@example.com")

	status, body := doJSON(t, http.MethodDelete, srv.URL+"/data/customers/", map[string]interface{}{
		"filter": map[string]interface{}{"id": id},
		"soft":   true,
	})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(1), body["count"])

	// The row is still retrievable, now stamped.
	status, body = doJSON(t, http.MethodPost, srv.URL+"/data/customers/query", map[string]interface{}{
		"filter": map[string]interface{}{"id": id},
	})
	require.Equal(t, http.StatusOK, status)
	records := body["records"].([]interface{})
	require.Len(t, records, 1)
	assert.NotNil(t, records[0].(map[string]interface{})["deleted_at"])
}

func TestBatchInsert_AtomicRollback(t *testing.T) {
	srv, _ := setupTestServer(t)

	status, _ := doJSON(t, http.MethodPost, srv.URL+"/data/products/batch/insert", map[string]interface{}{
		"items": []map[string]interface{}{
			{"sku": "sku_a", "name": "A", "price": 1.5},
			{"sku": "sku_b", "name": "B"}, // missing price
		},
	})
	require.Equal(t, http.StatusBadRequest, status)

	status, body := doJSON(t, http.MethodPost, srv.URL+"/data/products/query", map[string]interface{}{})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(0), body["total_count"])
}

func TestBatchInsert_AllValid(t *testing.T) {
	srv, _ := setupTestServer(t)

	status, body := doJSON(t, http.MethodPost, srv.URL+"/data/products/batch/insert", map[string]interface{}{
		"items": []map[string]interface{}{
			{"sku": "sku_a", "name": "A", "price": 1.5},
			{"sku": "sku_b", "name": "B", "price": 2.5},
		},
	})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(2), body["count"])
	assert.Len(t, body["ids"].([]interface{}), 2)
}

func TestBatchInsert_EmptyIsBadRequest(t *testing.T) {
	srv, _ := setupTestServer(t)

	status, body := doJSON(t, http.MethodPost, srv.URL+"/data/products/batch/insert", map[string]interface{}{
		"items": []map[string]interface{}{},
	})
	require.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, body["error"], "batch size")
}

func TestBatchUpdateAndDelete(t *testing.T) {
	srv, _ := setupTestServer(t)
	a := insertTestCustomer(t, srv, "Jane", "jane@example.com")
	b := insertTestCustomer(t, srv, "John", "john@example.com")

	status, body := doJSON(t, http.MethodPost, srv.URL+"/data/customers/batch/update", map[string]interface{}{
		"items": []map[string]interface{}{
			{"data": map[string]interface{}{"credit_limit": 100}, "filter": map[string]interface{}{"id": a}},
			{"data": map[string]interface{}{"credit_limit": 200}, "filter": map[string]interface{}{"id": b}},
		},
	})
	require.Equal(t, http.StatusOK, status, "batch update: %v", body)
	assert.Equal(t, float64(2), body["count"])

	status, body = doJSON(t, http.MethodPost, srv.URL+"/data/customers/batch/delete", map[string]interface{}{
		"filters": []map[string]interface{}{
			{"id": a},
			{"id": b},
		},
	})
	require.Equal(t, http.StatusOK, status, "batch delete: %v", body)
	assert.Equal(t, float64(2), body["count"])
}

func TestMalformedBodyIs400(t *testing.T) {
	srv, _ := setupTestServer(t)

	resp, err := http.Post(srv.URL+"/data/customers/", "application/json", bytes.NewReader([]byte("{nope")))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func getJSON(t *testing.T, url string) (int, map[string]interface{}) {
	t.Helper()
	return doJSON(t, http.MethodGet, url, nil)
}

func TestGetSchemaEndpoint(t *testing.T) {
	srv, _ := setupTestServer(t)

	status, body := getJSON(t, srv.URL+"/tables/customers/schema")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "customers", body["table"])

	columns := body["columns"].([]interface{})
	names := make([]string, 0, len(columns))
	for _, c := range columns {
		names = append(names, c.(map[string]interface{})["name"].(string))
	}
	assert.Contains(t, names, "email")
	assert.Contains(t, names, "deleted_at")
}

func TestListTablesEndpoint(t *testing.T) {
	srv, _ := setupTestServer(t)

	status, body := getJSON(t, srv.URL+"/tables")
	require.Equal(t, http.StatusOK, status)
	tables := body["tables"].([]interface{})
	// order_items exists in the store but is not whitelisted
	assert.ElementsMatch(t, []interface{}{"customers", "orders", "products"}, tables)

	status, body = getJSON(t, srv.URL+"/tables?pattern=cust*")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, []interface{}{"customers"}, body["tables"])
}

func TestListColumnsEndpoint(t *testing.T) {
	srv, _ := setupTestServer(t)

	status, body := getJSON(t, srv.URL+"/tables/customers/columns")
	require.Equal(t, http.StatusOK, status)
	bare := body["columns"].([]interface{})
	first := bare[0].(map[string]interface{})
	assert.NotContains(t, first, "data_type") // omitted without metadata

	status, body = getJSON(t, srv.URL+"/tables/customers/columns?include_metadata=true")
	require.Equal(t, http.StatusOK, status)
	full := body["columns"].([]interface{})
	var id map[string]interface{}
	for _, c := range full {
		if c.(map[string]interface{})["name"] == "id" {
			id = c.(map[string]interface{})
		}
	}
	require.NotNil(t, id)
	assert.Equal(t, true, id["primary_key"])
}

func TestRelationshipsEndpoint(t *testing.T) {
	srv, _ := setupTestServer(t)

	status, body := getJSON(t, srv.URL+"/tables/customers/relationships?depth=2")
	require.Equal(t, http.StatusOK, status)
	children := body["children"].([]interface{})
	require.NotEmpty(t, children)
	child := children[0].(map[string]interface{})
	assert.Equal(t, "orders", child["table"])
	assert.Equal(t, float64(1), child["depth"])
}

func TestFindPathEndpoint(t *testing.T) {
	srv, _ := setupTestServer(t)

	status, body := getJSON(t, srv.URL+"/relationships/path?from=orders&to=customers")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["found"])
	assert.Equal(t, []interface{}{"orders", "customers"}, body["path"])
}

func TestGraphEndpoint(t *testing.T) {
	srv, _ := setupTestServer(t)

	status, body := getJSON(t, srv.URL+"/tables/customers/graph?depth=2")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "customers", body["root"])
	assert.NotEmpty(t, body["nodes"])
}

func TestCacheStatsAndInvalidateEndpoints(t *testing.T) {
	srv, _ := setupTestServer(t)

	_, _ = getJSON(t, srv.URL+"/tables/customers/schema")
	_, _ = getJSON(t, srv.URL+"/tables/customers/schema")

	status, body := getJSON(t, srv.URL+"/cache/stats")
	require.Equal(t, http.StatusOK, status)
	assert.GreaterOrEqual(t, body["hits"].(float64), float64(1))

	status, body = doJSON(t, http.MethodPost, srv.URL+"/cache/invalidate", nil)
	require.Equal(t, http.StatusOK, status)
	assert.GreaterOrEqual(t, body["removed"].(float64), float64(1))
}

func seedAuditEntries(t *testing.T, repo *repository.AuditRepo, entries []domain.AuditEntry) {
	t.Helper()
	for i := range entries {
		require.NoError(t, repo.Insert(t.Context(), &entries[i]))
	}
}

func TestAuditLogEndpoints(t *testing.T) {
	srv, repo := setupTestServer(t)

	detail := "boom"
	seedAuditEntries(t, repo, []domain.AuditEntry{
		{ID: "a", Operation: domain.OpInsert, TableName: "customers", Actor: "svc", Success: true, DurationMs: 10, CreatedAt: time.Now().Add(-2 * time.Minute)},
		{ID: "b", Operation: domain.OpUpdate, TableName: "customers", Actor: "svc", Success: false, ErrorDetail: &detail, DurationMs: 30, CreatedAt: time.Now().Add(-time.Minute)},
		{ID: "c", Operation: domain.OpRead, TableName: "orders", Actor: "other", Success: true, DurationMs: 20, CreatedAt: time.Now()},
	})

	status, body := getJSON(t, srv.URL+"/audit/logs?table=customers")
	require.Equal(t, http.StatusOK, status)
	logs := body["logs"].([]interface{})
	require.Len(t, logs, 2)
	assert.Equal(t, float64(2), body["total"])

	status, body = getJSON(t, srv.URL+"/audit/logs?success=false")
	require.Equal(t, http.StatusOK, status)
	logs = body["logs"].([]interface{})
	require.Len(t, logs, 1)
	assert.Equal(t, "boom", logs[0].(map[string]interface{})["error_detail"])

	status, _ = getJSON(t, srv.URL+"/audit/logs?success=maybe")
	assert.Equal(t, http.StatusBadRequest, status)

	status, body = getJSON(t, srv.URL+"/audit/summary")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(3), body["total"])
	assert.Equal(t, float64(1), body["failures"])
	assert.InDelta(t, 20.0, body["avg_duration_ms"].(float64), 0.001)
	assert.NotEmpty(t, body["by_operation"])
}

func TestMutationsAreAudited(t *testing.T) {
	srv, repo := setupTestServer(t)
	insertTestCustomer(t, srv, "Jane", "jane@example.com")

	// The recorder is asynchronous; poll briefly.
	deadline := time.Now().Add(2 * time.Second)
	for {
		entries, _, err := repo.List(t.Context(), domain.AuditFilter{})
		require.NoError(t, err)
		if len(entries) > 0 {
			assert.Equal(t, domain.OpInsert, entries[0].Operation)
			assert.True(t, entries[0].Success)
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("no audit entry recorded")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestHealthz(t *testing.T) {
	rec := httptest.NewRecorder()
	Healthz(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}
