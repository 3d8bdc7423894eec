// Package errors defines the HTTP error envelope shared by the status
// server's handlers and middleware.
package errors

import (
	"encoding/json"
	"net/http"
)

// HTTPErrorResponse is the JSON body for every non-2xx response.
type HTTPErrorResponse struct {
	Error HTTPErrorDetail `json:"error"`
}

// HTTPErrorDetail carries the machine-readable error.
type HTTPErrorDetail struct {
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	RequestID string         `json:"request_id,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
}

// NewHTTPErrorResponse builds an envelope with the given code and message.
func NewHTTPErrorResponse(code, message string) *HTTPErrorResponse {
	return &HTTPErrorResponse{Error: HTTPErrorDetail{Code: code, Message: message}}
}

// WithRequestID sets the request ID for correlation.
func (r *HTTPErrorResponse) WithRequestID(id string) *HTTPErrorResponse {
	r.Error.RequestID = id
	return r
}

// WithDetails attaches structured context to the error.
func (r *HTTPErrorResponse) WithDetails(details map[string]any) *HTTPErrorResponse {
	r.Error.Details = details
	return r
}

// Write serializes the envelope with the given status code.
func (r *HTTPErrorResponse) Write(w http.ResponseWriter, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(r)
}

// RespondWithError writes a standard envelope for err. Unrecognized errors
// become opaque 500s so internal detail never leaks to clients.
func RespondWithError(w http.ResponseWriter, _ *http.Request, err error) {
	msg := "internal server error"
	if err != nil {
		msg = err.Error()
	}
	NewHTTPErrorResponse("INTERNAL_ERROR", msg).Write(w, http.StatusInternalServerError)
}
