package analysis

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"grant-insight/internal/domain/entity"
	"grant-insight/internal/handler/http/respond"
	analysisUC "grant-insight/internal/usecase/analysis"
)

const unavailableMessage = "analysis is temporarily unavailable, please retry later"

// writeError maps usecase errors onto status codes. Provider detail never
// reaches the client.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var callErr *analysisUC.CallError
	switch {
	case errors.Is(err, analysisUC.ErrInvalidRequest), errors.Is(err, entity.ErrInvalidInput):
		respond.Error(w, r, http.StatusBadRequest, err)
	case errors.Is(err, entity.ErrNotFound):
		respond.Error(w, r, http.StatusNotFound, err)
	case errors.As(err, &callErr):
		respond.Error(w, r, http.StatusServiceUnavailable,
			respond.Public(http.StatusServiceUnavailable, unavailableMessage, err))
	default:
		respond.Error(w, r, http.StatusInternalServerError, err)
	}
}

// decodeJSON reads one JSON object from r's body into v, rejecting unknown
// fields and trailing data.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	err := dec.Decode(v)
	if err == nil && dec.More() {
		err = errors.New("unexpected data after JSON object")
	}
	if err == nil {
		return true
	}

	var maxErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxErr):
		respond.Error(w, r, http.StatusRequestEntityTooLarge,
			respond.Public(http.StatusRequestEntityTooLarge, fmt.Sprintf("request body must not exceed %d bytes", maxErr.Limit), err))
	case errors.Is(err, io.EOF):
		respond.Error(w, r, http.StatusBadRequest,
			respond.Public(http.StatusBadRequest, "request body is required", err))
	default:
		respond.Error(w, r, http.StatusBadRequest,
			respond.Public(http.StatusBadRequest, "invalid JSON body", err))
	}
	return false
}
