package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"datagate/internal/domain"
	"datagate/internal/engine"
)

type sortKeyBody struct {
	Column    string `json:"column"`
	Direction string `json:"direction,omitempty"`
}

type queryBody struct {
	Columns []string               `json:"columns,omitempty"`
	Filter  map[string]interface{} `json:"filter,omitempty"`
	OrderBy []sortKeyBody          `json:"order_by,omitempty"`
	Limit   int                    `json:"limit,omitempty"`
	Offset  int                    `json:"offset,omitempty"`
}

type queryResponse struct {
	Records    []domain.Record `json:"records"`
	Count      int             `json:"count"`
	TotalCount int64           `json:"total_count"`
}

func (h *Handler) queryRecords(w http.ResponseWriter, r *http.Request) {
	var body queryBody
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &body); err != nil {
			h.writeError(w, err)
			return
		}
	}

	orderBy := make([]domain.SortKey, len(body.OrderBy))
	for i, k := range body.OrderBy {
		orderBy[i] = domain.SortKey{Column: k.Column, Direction: domain.SortDirection(k.Direction)}
	}

	result, err := h.data.Query(r.Context(), engine.QueryRequest{
		Table:   chi.URLParam(r, "table"),
		Columns: body.Columns,
		Filter:  body.Filter,
		OrderBy: orderBy,
		Limit:   body.Limit,
		Offset:  body.Offset,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	records := result.Records
	if records == nil {
		records = []domain.Record{}
	}
	h.writeJSON(w, http.StatusOK, queryResponse{
		Records:    records,
		Count:      result.Count,
		TotalCount: result.TotalCount,
	})
}

type insertBody struct {
	Data domain.Record `json:"data"`
}

func (h *Handler) insertRecord(w http.ResponseWriter, r *http.Request) {
	var body insertBody
	if err := decodeJSON(r, &body); err != nil {
		h.writeError(w, err)
		return
	}

	record, err := h.data.Insert(r.Context(), engine.InsertRequest{
		Table: chi.URLParam(r, "table"),
		Data:  body.Data,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, map[string]interface{}{"record": record})
}

type updateBody struct {
	Data           domain.Record          `json:"data"`
	Filter         map[string]interface{} `json:"filter"`
	PerRecordAudit bool                   `json:"per_record_audit,omitempty"`
}

type mutationResponse struct {
	Records []domain.Record `json:"records"`
	Count   int             `json:"count"`
}

func (h *Handler) updateRecords(w http.ResponseWriter, r *http.Request) {
	var body updateBody
	if err := decodeJSON(r, &body); err != nil {
		h.writeError(w, err)
		return
	}

	records, err := h.data.Update(r.Context(), engine.UpdateRequest{
		Table:          chi.URLParam(r, "table"),
		Data:           body.Data,
		Filter:         body.Filter,
		PerRecordAudit: body.PerRecordAudit,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	if records == nil {
		records = []domain.Record{}
	}
	h.writeJSON(w, http.StatusOK, mutationResponse{Records: records, Count: len(records)})
}

type deleteBody struct {
	Filter         map[string]interface{} `json:"filter"`
	Soft           bool                   `json:"soft,omitempty"`
	PerRecordAudit bool                   `json:"per_record_audit,omitempty"`
}

func (h *Handler) deleteRecords(w http.ResponseWriter, r *http.Request) {
	var body deleteBody
	if err := decodeJSON(r, &body); err != nil {
		h.writeError(w, err)
		return
	}

	records, err := h.data.Delete(r.Context(), engine.DeleteRequest{
		Table:          chi.URLParam(r, "table"),
		Filter:         body.Filter,
		Soft:           body.Soft,
		PerRecordAudit: body.PerRecordAudit,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	if records == nil {
		records = []domain.Record{}
	}
	h.writeJSON(w, http.StatusOK, mutationResponse{Records: records, Count: len(records)})
}

type batchResponse struct {
	Count   int             `json:"count"`
	IDs     []string        `json:"ids"`
	Records []domain.Record `json:"records,omitempty"`
}

func (h *Handler) writeBatch(w http.ResponseWriter, result *engine.BatchResult) {
	ids := result.IDs
	if ids == nil {
		ids = []string{}
	}
	h.writeJSON(w, http.StatusOK, batchResponse{Count: result.Count, IDs: ids, Records: result.Records})
}

type batchInsertBody struct {
	Items []domain.Record `json:"items"`
}

func (h *Handler) batchInsert(w http.ResponseWriter, r *http.Request) {
	var body batchInsertBody
	if err := decodeJSON(r, &body); err != nil {
		h.writeError(w, err)
		return
	}

	result, err := h.data.BatchInsert(r.Context(), chi.URLParam(r, "table"), body.Items)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeBatch(w, result)
}

type batchUpdateItemBody struct {
	Data   domain.Record          `json:"data"`
	Filter map[string]interface{} `json:"filter"`
}

type batchUpdateBody struct {
	Items []batchUpdateItemBody `json:"items"`
}

func (h *Handler) batchUpdate(w http.ResponseWriter, r *http.Request) {
	var body batchUpdateBody
	if err := decodeJSON(r, &body); err != nil {
		h.writeError(w, err)
		return
	}

	items := make([]engine.BatchUpdateItem, len(body.Items))
	for i, item := range body.Items {
		items[i] = engine.BatchUpdateItem{Data: item.Data, Filter: item.Filter}
	}

	result, err := h.data.BatchUpdate(r.Context(), chi.URLParam(r, "table"), items)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeBatch(w, result)
}

type batchDeleteBody struct {
	Filters []map[string]interface{} `json:"filters"`
	Soft    bool                     `json:"soft,omitempty"`
}

func (h *Handler) batchDelete(w http.ResponseWriter, r *http.Request) {
	var body batchDeleteBody
	if err := decodeJSON(r, &body); err != nil {
		h.writeError(w, err)
		return
	}

	result, err := h.data.BatchDelete(r.Context(), chi.URLParam(r, "table"), body.Filters, body.Soft)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeBatch(w, result)
}
