package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	dErrors "meridian/pkg/domain-errors"
)

// GenericInternalDetail is the only message ever sent to clients for
// unexpected failures. Internal error text stays in server-side logs.
const GenericInternalDetail = "Internal server error"

// ErrorResponse is the wire shape for every error this API returns.
type ErrorResponse struct {
	Detail    string `json:"detail"`
	ErrorCode string `json:"error_code,omitempty"`
}

func WriteJSON(w http.ResponseWriter, status int, response any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Errors after WriteHeader cannot change the status code, so we ignore encoding errors.
	// The response body may be incomplete, but headers are already sent.
	_ = json.NewEncoder(w).Encode(response)
}

// WriteError centralizes domain error translation to HTTP responses.
// Domain errors map to their status code and carry their message as detail;
// anything else becomes a 500 with a generic detail so no internal error
// text leaks to the client.
func WriteError(w http.ResponseWriter, err error) {
	var domainErr *dErrors.Error
	if errors.As(err, &domainErr) && domainErr.Code != dErrors.CodeInternal {
		status := DomainCodeToHTTPStatus(domainErr.Code)
		detail := domainErr.Message
		if detail == "" {
			detail = http.StatusText(status)
		}
		WriteJSON(w, status, ErrorResponse{
			Detail:    detail,
			ErrorCode: string(domainErr.Code),
		})
		return
	}

	WriteJSON(w, http.StatusInternalServerError, ErrorResponse{
		Detail:    GenericInternalDetail,
		ErrorCode: string(dErrors.CodeInternal),
	})
}

// DomainCodeToHTTPStatus translates domain error codes to HTTP status codes.
// Uniqueness conflicts deliberately map to 400, matching the API contract for
// duplicate-key creation attempts.
func DomainCodeToHTTPStatus(code dErrors.Code) int {
	switch code {
	case dErrors.CodeNotFound:
		return http.StatusNotFound
	case dErrors.CodeBadRequest, dErrors.CodeInvalidInput, dErrors.CodeConflict:
		return http.StatusBadRequest
	case dErrors.CodeValidation:
		return http.StatusUnprocessableEntity
	case dErrors.CodeUnauthorized:
		return http.StatusUnauthorized
	case dErrors.CodeForbidden:
		return http.StatusForbidden
	case dErrors.CodeRateLimited:
		return http.StatusTooManyRequests
	case dErrors.CodeUnavailable:
		return http.StatusServiceUnavailable
	case dErrors.CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
