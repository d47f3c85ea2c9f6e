package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/dmitrijs2005/vidtube/internal/common"
)

// apiResponse is the success envelope.
type apiResponse struct {
	StatusCode int    `json:"statusCode"`
	Data       any    `json:"data"`
	Message    string `json:"message"`
	Success    bool   `json:"success"`
}

// apiError is the failure envelope.
type apiError struct {
	StatusCode int      `json:"statusCode"`
	Message    string   `json:"message"`
	Errors     []string `json:"errors"`
	Success    bool     `json:"success"`
	Data       any      `json:"data"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func (s *HTTPServer) writeOK(w http.ResponseWriter, status int, data any, msg string) {
	writeJSON(w, status, apiResponse{StatusCode: status, Data: data, Message: msg, Success: status < http.StatusBadRequest})
}

// writeError renders err as the failure envelope. Non-AppError values become
// a generic 500; 5xx causes are logged, never sent.
func (s *HTTPServer) writeError(w http.ResponseWriter, r *http.Request, err error) {
	appErr := common.AsAppError(err)
	if appErr.Status >= http.StatusInternalServerError {
		s.logger.Error(r.Context(), "request failed", "path", r.URL.Path, "error", err)
	}
	writeJSON(w, appErr.Status, apiError{
		StatusCode: appErr.Status,
		Message:    appErr.Message,
		Errors:     []string{},
		Success:    false,
	})
}
