package middleware

import (
	"fmt"
	"net/http"

	"go.uber.org/zap"

	apperrors "github.com/3leaps/gridrun/internal/errors"
	"github.com/3leaps/gridrun/internal/observability"
)

// ErrorResponse is the envelope written for recovered panics.
type ErrorResponse = apperrors.HTTPErrorResponse

// Recovery converts handler panics into 500 responses with the standard
// error envelope. The panic value and stack are logged, never returned to
// the client beyond the message.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}

			requestID := GetRequestID(r.Context())
			observability.CLILogger.Error("handler panic",
				zap.Any("panic", rec),
				zap.String("path", r.URL.Path),
				zap.String("request_id", requestID),
				zap.Stack("stack"))

			envelope := apperrors.NewHTTPErrorResponse(
				"INTERNAL_ERROR",
				fmt.Sprintf("panic: %v", rec),
			).WithRequestID(requestID)
			writeErrorResponse(w, envelope, http.StatusInternalServerError)
		}()
		next.ServeHTTP(w, r)
	})
}

// ErrorHandler is the panic boundary for the outermost chain position.
// It shares Recovery's behavior.
func ErrorHandler(next http.Handler) http.Handler {
	return Recovery(next)
}

func writeErrorResponse(w http.ResponseWriter, envelope *apperrors.HTTPErrorResponse, statusCode int) {
	envelope.Write(w, statusCode)
}
