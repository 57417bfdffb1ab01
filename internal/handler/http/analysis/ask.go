package analysis

import (
	"net/http"

	"grant-insight/internal/handler/http/respond"
)

// AskHandler answers a free-text question about open grants.
type AskHandler struct{ Svc Service }

// ServeHTTP handles POST /questions.
func (h AskHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req AskRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	answer, err := h.Svc.Ask(r.Context(), req.Question)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, answer)
}
