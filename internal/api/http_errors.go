package api

import (
	"errors"
	"net/http"

	"github.com/hugo-lorenzo-mato/workflow-advisor/internal/core"
)

func httpStatusForDomainError(err error) (int, bool) {
	var domErr *core.DomainError
	if !errors.As(err, &domErr) || domErr == nil {
		return 0, false
	}

	switch domErr.Category {
	case core.ErrCatValidation:
		return http.StatusUnprocessableEntity, true
	case core.ErrCatSchema:
		return http.StatusBadGateway, true
	case core.ErrCatNotFound:
		return http.StatusNotFound, true
	case core.ErrCatConflict:
		return http.StatusConflict, true
	case core.ErrCatAuth:
		return http.StatusUnauthorized, true
	case core.ErrCatRateLimit:
		return http.StatusTooManyRequests, true
	case core.ErrCatTimeout:
		return http.StatusGatewayTimeout, true
	case core.ErrCatCancelled:
		return 499, true
	default:
		return http.StatusInternalServerError, true
	}
}

// errorResponse is the JSON body of every error reply.
type errorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	TraceID string `json:"trace_id,omitempty"`
}

func errorBody(err error) errorResponse {
	body := errorResponse{Error: err.Error()}
	var domErr *core.DomainError
	if errors.As(err, &domErr) {
		body.Error = domErr.Message
		body.Code = domErr.Code
		body.TraceID = domErr.TraceID()
	}
	return body
}
