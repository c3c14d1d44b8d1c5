package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"datagate/internal/domain"
)

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error  string   `json:"error"`
	Fields []string `json:"fields,omitempty"`
}

// maxBodyBytes caps request bodies. Batch payloads of 1000 records fit
// comfortably.
const maxBodyBytes = 8 << 20

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := httpStatusFromDomainError(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed", "error", err)
	}
	h.writeJSON(w, status, errorBody{Error: err.Error(), Fields: validationFields(err)})
}

// decodeJSON reads the request body into v. Malformed bodies come back
// as validation errors so the caller sees a 400, not a 500.
func decodeJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return domain.ErrValidation("request body is required")
		}
		return domain.ErrValidation("malformed request body: " + err.Error())
	}
	return nil
}
