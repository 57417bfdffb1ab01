package analysis

import (
	"log/slog"
	"net/http"

	"grant-insight/internal/handler/http/pathutil"
	"grant-insight/internal/handler/http/respond"
	"grant-insight/internal/observability/logging"
)

// EnqueueHandler queues a document for background analysis.
type EnqueueHandler struct {
	Queue  Queue
	Logger *slog.Logger
}

// ServeHTTP handles POST /analyses/{id}.
// It answers 202 when the document was queued and 200 when it was already
// queued, in progress or settled.
func (h EnqueueHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id, err := pathutil.PathID(r, "id")
	if err != nil {
		respond.Error(w, r, http.StatusBadRequest, err)
		return
	}

	logger := h.Logger
	if logger == nil {
		logger = slog.Default()
	}

	res := h.Queue.Enqueue(id)
	logging.WithRequestID(r.Context(), logger).InfoContext(r.Context(), "analysis enqueue requested",
		slog.Int64("subject_id", id),
		slog.Bool("queued", res.Queued),
		slog.String("status", string(res.Status)))

	code := http.StatusOK
	if res.Queued {
		code = http.StatusAccepted
	}
	respond.JSON(w, code, EnqueueDTO{SubjectID: id, Queued: res.Queued, Status: res.Status})
}

// StatusHandler reports where a document is in the analysis lifecycle.
type StatusHandler struct {
	Queue Queue
}

// ServeHTTP handles GET /analyses/{id}. Looking up a status never starts processing.
func (h StatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id, err := pathutil.PathID(r, "id")
	if err != nil {
		respond.Error(w, r, http.StatusBadRequest, err)
		return
	}

	st, err := h.Queue.StatusOf(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	respond.JSON(w, http.StatusOK, StatusDTO{
		SubjectID: id,
		Processed: st.Processed,
		Status:    st.Status,
		Result:    st.Result,
		Error:     st.Error,
	})
}
