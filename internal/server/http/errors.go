package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/dmitrijs2005/bucketvault/internal/common"
)

// ErrorResponse is the JSON body of every non-2xx API response.
type ErrorResponse struct {
	Error        string `json:"error"`
	Code         string `json:"code,omitempty"`
	Field        string `json:"field,omitempty"`
	CurrentCount *int   `json:"currentCount,omitempty"`
	MaxAllowed   *int   `json:"maxAllowed,omitempty"`
	RequestID    string `json:"requestId,omitempty"`
}

// Error codes shown to API clients.
const (
	CodeValidation            = "VALIDATION_ERROR"
	CodeUnauthorized          = "UNAUTHORIZED"
	CodeNotFound              = "NOT_FOUND"
	CodeEmailTaken            = "EMAIL_TAKEN"
	CodeDuplicateBucket       = "DUPLICATE_BUCKET"
	CodeBucketLimitExceeded   = "BUCKET_LIMIT_EXCEEDED"
	CodeNotConfigured         = "NOT_CONFIGURED"
	CodeCredentialsUnreadable = "BUCKET_CREDENTIALS_UNREADABLE"
	CodeUpstreamStorage       = "UPSTREAM_STORAGE_ERROR"
	CodeInternal              = "SERVER_ERROR"
)

// errorStatus maps a service error onto an HTTP status and response body.
func errorStatus(err error) (int, ErrorResponse) {
	var (
		ve *common.ValidationError
		qe *common.QuotaExceededError
		de *common.DuplicateBucketError
		ue *common.UpstreamStorageError
	)

	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest, ErrorResponse{Error: ve.Error(), Code: CodeValidation, Field: ve.Field}
	case errors.Is(err, common.ErrValidation):
		return http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: CodeValidation}

	case errors.Is(err, common.ErrorUnauthorized),
		errors.Is(err, common.ErrInvalidToken),
		errors.Is(err, common.ErrTokenExpired):
		return http.StatusUnauthorized, ErrorResponse{Error: "Unauthorized", Code: CodeUnauthorized}

	case errors.Is(err, common.ErrObjectNotFound):
		return http.StatusNotFound, ErrorResponse{Error: "File not found", Code: CodeNotFound}
	case errors.Is(err, common.ErrorNotFound):
		return http.StatusNotFound, ErrorResponse{Error: "Not found", Code: CodeNotFound}

	case errors.Is(err, common.ErrEmailTaken):
		return http.StatusConflict, ErrorResponse{Error: "User already exists", Code: CodeEmailTaken}

	case errors.As(err, &de):
		return http.StatusConflict, ErrorResponse{
			Error: "A bucket with this name already exists in your account. Please use a different bucket name.",
			Code:  CodeDuplicateBucket,
		}

	case errors.As(err, &qe):
		current, max := qe.Current, qe.Max
		return http.StatusConflict, ErrorResponse{
			Error:        fmt.Sprintf("Bucket limit reached. You can only have %d buckets.", qe.Max),
			Code:         CodeBucketLimitExceeded,
			CurrentCount: &current,
			MaxAllowed:   &max,
		}

	case errors.Is(err, common.ErrNotConfigured):
		return http.StatusBadRequest, ErrorResponse{Error: "S3 configuration not found", Code: CodeNotConfigured}

	case errors.Is(err, common.ErrDecryptionFailed), errors.Is(err, common.ErrMalformedCiphertext):
		return http.StatusUnprocessableEntity, ErrorResponse{
			Error: "Stored credentials for this bucket cannot be read. Please remove and add the bucket again.",
			Code:  CodeCredentialsUnreadable,
		}

	case errors.As(err, &ue):
		return http.StatusBadGateway, ErrorResponse{Error: "S3 Error: " + ue.Err.Error(), Code: CodeUpstreamStorage}

	default:
		return http.StatusInternalServerError, ErrorResponse{Error: "Internal server error", Code: CodeInternal}
	}
}

// WriteError renders err as JSON and returns the status it used.
func WriteError(w http.ResponseWriter, r *http.Request, err error) int {
	status, body := errorStatus(err)
	body.RequestID = RequestIDFromContext(r.Context())
	WriteJSON(w, status, body)
	return status
}

// WriteJSON writes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return common.NewValidationError("body", "invalid JSON")
	}
	return nil
}
