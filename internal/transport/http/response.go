package httptransport

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"lifeline/internal/reservation"
	dErrors "lifeline/pkg/domain-errors"
	"lifeline/pkg/requestcontext"
)

const maxBodyBytes = 1 << 20

// errorResponse is the error envelope. Available is set only for stock shortfalls.
type errorResponse struct {
	Error       string `json:"error"`
	Description string `json:"error_description,omitempty"`
	Available   *int   `json:"available,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError translates a domain error into its status and envelope. Internal
// failures never expose their message.
func writeError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	resp := errorResponse{Error: string(code)}
	if code != dErrors.CodeInternal {
		resp.Description = dErrors.Message(err)
	}
	var shortfall *reservation.InsufficientStockError
	if errors.As(err, &shortfall) {
		resp.Error = string(dErrors.CodeInsufficientStock)
		resp.Description = shortfall.Error()
		available := shortfall.Available
		resp.Available = &available
		code = dErrors.CodeInsufficientStock
	}
	writeJSON(w, dErrors.ToHTTPStatus(code), resp)
}

// fail logs and writes err. Client errors log at warn, the rest at error.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	ctx := r.Context()
	level := slog.LevelWarn
	if status := dErrors.ToHTTPStatus(dErrors.CodeOf(err)); status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	h.logger.Log(ctx, level, msg,
		"error", err,
		"request_id", requestcontext.RequestID(ctx),
	)
	writeError(w, err)
}

// decodeJSON reads one JSON document from the body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return dErrors.New(dErrors.CodeBadRequest, "request body is required")
		}
		return dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid request body")
	}
	return nil
}
