package analysis

import (
	"net/http"

	"grant-insight/internal/handler/http/respond"
)

// RecommendHandler ranks open grants for an organization profile.
type RecommendHandler struct{ Svc Service }

// ServeHTTP handles POST /recommendations. Degraded results are still 200;
// the body carries degraded=true and source=fallback.
func (h RecommendHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req RecommendRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	set, err := h.Svc.Recommend(r.Context(), req.Organization, req.Limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, set)
}
