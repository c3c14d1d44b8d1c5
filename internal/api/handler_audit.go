package api

import (
	"net/http"
	"strconv"
	"time"

	"datagate/internal/domain"
)

type auditEntryBody struct {
	ID          string    `json:"id"`
	Operation   string    `json:"operation"`
	TableName   string    `json:"table_name"`
	RecordIDs   []string  `json:"record_ids"`
	Actor       string    `json:"actor"`
	Success     bool      `json:"success"`
	ErrorDetail string    `json:"error_detail,omitempty"`
	DurationMs  int64     `json:"duration_ms"`
	Changes     string    `json:"changes,omitempty"`
	Fingerprint string    `json:"fingerprint"`
	CreatedAt   time.Time `json:"created_at"`
}

func auditEntryToAPI(e domain.AuditEntry) auditEntryBody {
	body := auditEntryBody{
		ID:          e.ID,
		Operation:   string(e.Operation),
		TableName:   e.TableName,
		RecordIDs:   e.RecordIDs,
		Actor:       e.Actor,
		Success:     e.Success,
		DurationMs:  e.DurationMs,
		Fingerprint: e.Fingerprint,
		CreatedAt:   e.CreatedAt,
	}
	if e.ErrorDetail != nil {
		body.ErrorDetail = *e.ErrorDetail
	}
	if e.Changes != nil {
		body.Changes = *e.Changes
	}
	if body.RecordIDs == nil {
		body.RecordIDs = []string{}
	}
	return body
}

// auditFilterFromQuery builds an AuditFilter from the request's query
// parameters. Time bounds accept RFC 3339.
func auditFilterFromQuery(r *http.Request) (domain.AuditFilter, error) {
	q := r.URL.Query()
	var filter domain.AuditFilter

	if v := q.Get("table"); v != "" {
		filter.TableName = &v
	}
	if v := q.Get("operation"); v != "" {
		op := domain.Operation(v)
		filter.Operation = &op
	}
	if v := q.Get("actor"); v != "" {
		filter.Actor = &v
	}
	if v := q.Get("success"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return filter, domain.ErrValidation("success must be a boolean")
		}
		filter.Success = &b
	}
	if v := q.Get("from"); v != "" {
		ts, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return filter, domain.ErrValidation("from must be an RFC 3339 timestamp")
		}
		filter.From = &ts
	}
	if v := q.Get("to"); v != "" {
		ts, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return filter, domain.ErrValidation("to must be an RFC 3339 timestamp")
		}
		filter.To = &ts
	}
	filter.Page = domain.PageRequest{
		MaxResults: queryInt(r, "limit", 0),
		Skip:       queryInt(r, "offset", 0),
	}
	return filter, nil
}

func (h *Handler) listAuditLogs(w http.ResponseWriter, r *http.Request) {
	filter, err := auditFilterFromQuery(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	entries, total, err := h.audit.List(r.Context(), filter)
	if err != nil {
		h.writeError(w, err)
		return
	}

	logs := make([]auditEntryBody, len(entries))
	for i, e := range entries {
		logs[i] = auditEntryToAPI(e)
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"logs": logs, "total": total})
}

type operationStatBody struct {
	Operation string `json:"operation"`
	Count     int64  `json:"count"`
	Failures  int64  `json:"failures"`
}

type tableStatBody struct {
	Table    string `json:"table"`
	Count    int64  `json:"count"`
	Failures int64  `json:"failures"`
}

type auditSummaryResponse struct {
	Total         int64               `json:"total"`
	Successes     int64               `json:"successes"`
	Failures      int64               `json:"failures"`
	SuccessRate   float64             `json:"success_rate"`
	AvgDurationMs float64             `json:"avg_duration_ms"`
	MaxDurationMs int64               `json:"max_duration_ms"`
	ByOperation   []operationStatBody `json:"by_operation"`
	ByTable       []tableStatBody     `json:"by_table"`
}

func (h *Handler) auditSummary(w http.ResponseWriter, r *http.Request) {
	filter, err := auditFilterFromQuery(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	summary, err := h.audit.Summary(r.Context(), filter)
	if err != nil {
		h.writeError(w, err)
		return
	}

	resp := auditSummaryResponse{
		Total:         summary.Total,
		Successes:     summary.Successes,
		Failures:      summary.Failures,
		SuccessRate:   summary.SuccessRate,
		AvgDurationMs: summary.AvgDurationMs,
		MaxDurationMs: summary.MaxDurationMs,
		ByOperation:   make([]operationStatBody, len(summary.ByOperation)),
		ByTable:       make([]tableStatBody, len(summary.ByTable)),
	}
	for i, s := range summary.ByOperation {
		resp.ByOperation[i] = operationStatBody{Operation: string(s.Operation), Count: s.Count, Failures: s.Failures}
	}
	for i, s := range summary.ByTable {
		resp.ByTable[i] = tableStatBody{Table: s.TableName, Count: s.Count, Failures: s.Failures}
	}
	h.writeJSON(w, http.StatusOK, resp)
}
