package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/skilldeck/skilldeck/internal/domain/job"
	"github.com/skilldeck/skilldeck/internal/domain/skill"
	apperrors "github.com/skilldeck/skilldeck/internal/errors"
)

// DecodeJSON decodes JSON from the request body into the destination and handles errors.
// Returns true if successful, false if there was an error (error response already written).
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_json", Err: err})
		return false
	}

	return true
}

// WriteJSON writes a JSON response with the given status code and data.
func WriteJSON(w http.ResponseWriter, code int, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if _, err := buf.WriteTo(w); err != nil {
		// Response writer errors (e.g., client disconnect) can't be recovered from here.
		return
	}
}

// ErrorParams groups parameters for WriteError.
type ErrorParams struct {
	Code    int
	ErrCode string
	Err     error
}

// WriteError writes a JSON error response using ErrorParams.
func WriteError(w http.ResponseWriter, p ErrorParams) {
	WriteJSON(w, p.Code, map[string]string{"error": p.ErrCode, "message": p.Err.Error()})
}

// errorBody is the JSON error envelope of the API.
type errorBody struct {
	Error   string            `json:"error"`
	Message string            `json:"message"`
	Kind    job.FailureKind   `json:"kind,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// WriteAppError maps err onto a status code and writes the JSON envelope.
// Messages of internal errors are not exposed.
func WriteAppError(w http.ResponseWriter, err error) {
	var fe skill.FieldErrors
	if errors.As(err, &fe) {
		WriteJSON(w, http.StatusUnprocessableEntity, errorBody{
			Error:   string(apperrors.ErrCodeValidation),
			Message: "Please fix the highlighted fields.",
			Fields:  fe,
		})
		return
	}

	code := errorCode(err)
	status := statusForCode(code)
	body := errorBody{Error: string(code), Message: apperrors.UserMessage(err, http.StatusText(status))}
	if code == apperrors.ErrCodeInternal {
		body.Message = "Internal server error"
	}
	if field := apperrors.GetField(err); field != "" {
		body.Fields = map[string]string{field: body.Message}
	}
	WriteJSON(w, status, body)
}

// WriteFailure writes a failed submission result.
func WriteFailure(w http.ResponseWriter, f *job.Failure) {
	code, status := failureStatus(f.Kind)
	WriteJSON(w, status, errorBody{Error: string(code), Message: f.Message, Kind: f.Kind})
}

// errorCode classifies err, treating bare context errors like their AppError counterparts.
func errorCode(err error) apperrors.ErrorCode {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return apperrors.ErrCodeTimeout
	case errors.Is(err, context.Canceled):
		return apperrors.ErrCodeCanceled
	}
	if code := apperrors.GetCode(err); code != "" {
		return code
	}
	return apperrors.ErrCodeInternal
}

func statusForCode(code apperrors.ErrorCode) int {
	switch code {
	case apperrors.ErrCodeNotFound:
		return http.StatusNotFound
	case apperrors.ErrCodeValidation:
		return http.StatusUnprocessableEntity
	case apperrors.ErrCodeConflict, apperrors.ErrCodeBusy:
		return http.StatusConflict
	case apperrors.ErrCodeUpstream:
		return http.StatusBadGateway
	case apperrors.ErrCodeUnavailable:
		return http.StatusServiceUnavailable
	case apperrors.ErrCodeTimeout:
		return http.StatusGatewayTimeout
	case apperrors.ErrCodeCanceled:
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}

func failureStatus(kind job.FailureKind) (apperrors.ErrorCode, int) {
	switch kind {
	case job.FailureBusy:
		return apperrors.ErrCodeBusy, http.StatusConflict
	case job.FailureTimeout:
		return apperrors.ErrCodeTimeout, http.StatusGatewayTimeout
	case job.FailureNetwork:
		return apperrors.ErrCodeUnavailable, http.StatusServiceUnavailable
	case job.FailureCanceled:
		return apperrors.ErrCodeCanceled, http.StatusRequestTimeout
	default:
		return apperrors.ErrCodeUpstream, http.StatusBadGateway
	}
}
