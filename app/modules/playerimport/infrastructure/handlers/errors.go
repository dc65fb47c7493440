package importhandlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	importdomain "github.com/Black-And-White-Club/casino-ops/app/modules/playerimport/domain"
	"github.com/Black-And-White-Club/casino-ops/pkg/observability/attr"
)

// Error codes that exist only at the HTTP boundary.
const (
	CodeInvalidRequest = "INVALID_REQUEST"
	CodeBatchNotFound  = "BATCH_NOT_FOUND"
	CodeInternal       = "INTERNAL_ERROR"
)

type errorResponse struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code        string   `json:"code"`
	Message     string   `json:"message"`
	Explanation string   `json:"explanation,omitempty"`
	Problems    []string `json:"problems,omitempty"`
}

func statusForCode(code importdomain.ErrorCode) int {
	switch code {
	case importdomain.CodeStateConflict, importdomain.CodeIdempotencyKeyConflict, importdomain.CodeMaxAttemptsExceeded:
		return http.StatusConflict
	case importdomain.CodeBatchRowLimit:
		return http.StatusRequestEntityTooLarge
	case importdomain.CodeParseError:
		return http.StatusUnprocessableEntity
	case importdomain.CodeStorageError:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// toErrorResponse maps a service error to its HTTP status and body.
func toErrorResponse(err error) (int, errorResponse) {
	var (
		pipelineErr   *importdomain.PipelineError
		mappingErr    *importdomain.MappingError
		validationErr *importdomain.ValidationError
		headersErr    *importdomain.MissingHeadersError
	)

	switch {
	case errors.As(err, &mappingErr):
		return http.StatusUnprocessableEntity, errorResponse{Error: errorDetail{
			Code:     CodeInvalidRequest,
			Message:  mappingErr.Error(),
			Problems: mappingErr.Problems,
		}}
	case errors.As(err, &validationErr):
		return http.StatusUnprocessableEntity, errorResponse{Error: errorDetail{
			Code:    CodeInvalidRequest,
			Message: validationErr.Error(),
		}}
	case errors.As(err, &headersErr):
		return http.StatusUnprocessableEntity, errorResponse{Error: errorDetail{
			Code:     CodeInvalidRequest,
			Message:  headersErr.Error(),
			Problems: headersErr.Headers,
		}}
	case errors.Is(err, importdomain.ErrBatchNotFound):
		return http.StatusNotFound, errorResponse{Error: errorDetail{
			Code:    CodeBatchNotFound,
			Message: importdomain.ErrBatchNotFound.Error(),
		}}
	case errors.As(err, &pipelineErr):
		return statusForCode(pipelineErr.Code), errorResponse{Error: errorDetail{
			Code:        string(pipelineErr.Code),
			Message:     pipelineErr.Message,
			Explanation: pipelineErr.Code.Explanation(),
		}}
	}
	return http.StatusInternalServerError, errorResponse{Error: errorDetail{
		Code:    CodeInternal,
		Message: "internal error",
	}}
}

func (h *ImportHandlers) writeError(ctx context.Context, w http.ResponseWriter, err error) {
	status, body := toErrorResponse(err)
	if status >= http.StatusInternalServerError {
		h.logger.ErrorContext(ctx, "Request failed", attr.ExtractCorrelationID(ctx), attr.Int("status", status), attr.Error(err))
	} else {
		h.logger.InfoContext(ctx, "Request rejected", attr.ExtractCorrelationID(ctx), attr.Int("status", status), attr.String("error_code", body.Error.Code))
	}
	writeJSON(w, status, body)
}

func badRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: errorDetail{Code: CodeInvalidRequest, Message: message}})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
