package api

import (
	"errors"
	"net/http"
	"testing"

	"github.com/hugo-lorenzo-mato/workflow-advisor/internal/core"
)

func TestHttpStatusForDomainError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantOK     bool
	}{
		{"validation", core.ErrValidation(core.CodeWorkflowTooShort, "bad"), http.StatusUnprocessableEntity, true},
		{"schema", core.ErrSchema("bad reply"), http.StatusBadGateway, true},
		{"not found", core.ErrWorkflowNotFound("x"), http.StatusNotFound, true},
		{"conflict", core.ErrInvalidApprovalState("x", core.ApprovalApproved), http.StatusConflict, true},
		{"auth", core.ErrAuth("missing token"), http.StatusUnauthorized, true},
		{"rate limit", core.ErrRateLimit("slow down"), http.StatusTooManyRequests, true},
		{"timeout", core.ErrTimeout("timed out"), http.StatusGatewayTimeout, true},
		{"merge (default)", core.ErrMerge(core.CodeOrphanView, "orphan"), http.StatusInternalServerError, true},
		{"non-domain error", errors.New("plain"), 0, false},
		{"nil error", nil, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, ok := httpStatusForDomainError(tt.err)
			if ok != tt.wantOK {
				t.Errorf("ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && status != tt.wantStatus {
				t.Errorf("status = %d, want %d", status, tt.wantStatus)
			}
		})
	}
}

func TestErrorBody(t *testing.T) {
	err := core.ErrSchema("parser reply does not match schema").WithDetail("trace_id", "t-1")
	body := errorBody(err)
	if body.Error != "parser reply does not match schema" || body.Code != core.CodeSchemaViolation || body.TraceID != "t-1" {
		t.Errorf("errorBody() = %+v", body)
	}
	if plain := errorBody(errors.New("boom")); plain.Error != "boom" || plain.Code != "" {
		t.Errorf("errorBody(plain) = %+v", plain)
	}
}
