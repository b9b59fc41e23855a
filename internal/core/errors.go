package core

import (
	"context"
	"errors"
	"fmt"
)

// ErrorCategory classifies errors for handling decisions.
type ErrorCategory string

const (
	ErrCatValidation ErrorCategory = "validation" // Invalid input, rejected before parsing
	ErrCatExecution  ErrorCategory = "execution"  // Collaborator call failed
	ErrCatTimeout    ErrorCategory = "timeout"    // Operation timed out
	ErrCatRateLimit  ErrorCategory = "rate_limit" // Model API rate limited
	ErrCatNetwork    ErrorCategory = "network"    // Network connectivity
	ErrCatSchema     ErrorCategory = "schema"     // Collaborator output did not match the expected shape
	ErrCatMerge      ErrorCategory = "merge"      // Structural inconsistency between partial views
	ErrCatState      ErrorCategory = "state"      // Illegal state transition or double write
	ErrCatAuth       ErrorCategory = "auth"       // Authentication failure
	ErrCatNotFound   ErrorCategory = "not_found"  // Resource not found
	ErrCatConflict   ErrorCategory = "conflict"   // Operation not allowed in the current state
	ErrCatCancelled  ErrorCategory = "cancelled"  // Caller cancelled the run
	ErrCatInternal   ErrorCategory = "internal"   // Unexpected internal error
)

// DomainError represents a structured error from the domain layer.
type DomainError struct {
	Category  ErrorCategory
	Code      string
	Message   string
	Retryable bool
	Cause     error
	Details   map[string]interface{}
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %s (%v)", e.Category, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Category, e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches a target.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Category == t.Category && e.Code == t.Code
}

// WithCause wraps an underlying error.
func (e *DomainError) WithCause(cause error) *DomainError {
	e.Cause = cause
	return e
}

// Clone returns a copy of e that can be modified without affecting e.
func (e *DomainError) Clone() *DomainError {
	c := *e
	if e.Details != nil {
		c.Details = make(map[string]interface{}, len(e.Details))
		for k, v := range e.Details {
			c.Details[k] = v
		}
	}
	return &c
}

// WithDetail adds contextual information.
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// TraceID returns the trace id attached to the error, if any.
func (e *DomainError) TraceID() string {
	if e.Details == nil {
		return ""
	}
	id, _ := e.Details["trace_id"].(string)
	return id
}

// ErrValidation creates a validation error.
func ErrValidation(code, message string) *DomainError {
	return &DomainError{
		Category:  ErrCatValidation,
		Code:      code,
		Message:   message,
		Retryable: false,
	}
}

// ErrExecution creates an execution error. Execution errors are retryable
// only when the caller marks them transient.
func ErrExecution(code, message string) *DomainError {
	return &DomainError{
		Category:  ErrCatExecution,
		Code:      code,
		Message:   message,
		Retryable: false,
	}
}

// ErrTransient creates a retryable execution error for a collaborator failure
// that is expected to clear up on its own.
func ErrTransient(code, message string) *DomainError {
	return &DomainError{
		Category:  ErrCatExecution,
		Code:      code,
		Message:   message,
		Retryable: true,
	}
}

// ErrTimeout creates a timeout error.
func ErrTimeout(message string) *DomainError {
	return &DomainError{
		Category:  ErrCatTimeout,
		Code:      CodeTimeout,
		Message:   message,
		Retryable: true,
	}
}

// ErrRateLimit creates a rate limit error.
func ErrRateLimit(message string) *DomainError {
	return &DomainError{
		Category:  ErrCatRateLimit,
		Code:      "RATE_LIMITED",
		Message:   message,
		Retryable: true,
	}
}

// ErrNetwork creates a network error.
func ErrNetwork(message string) *DomainError {
	return &DomainError{
		Category:  ErrCatNetwork,
		Code:      "NETWORK_ERROR",
		Message:   message,
		Retryable: true,
	}
}

// ErrSchema creates a schema violation error.
func ErrSchema(message string) *DomainError {
	return &DomainError{
		Category:  ErrCatSchema,
		Code:      CodeSchemaViolation,
		Message:   message,
		Retryable: false,
	}
}

// ErrMerge creates a merge error.
func ErrMerge(code, message string) *DomainError {
	return &DomainError{
		Category:  ErrCatMerge,
		Code:      code,
		Message:   message,
		Retryable: false,
	}
}

// ErrState creates a state error.
func ErrState(code, message string) *DomainError {
	return &DomainError{
		Category:  ErrCatState,
		Code:      code,
		Message:   message,
		Retryable: false,
	}
}

// ErrAuth creates an authentication error.
func ErrAuth(message string) *DomainError {
	return &DomainError{
		Category:  ErrCatAuth,
		Code:      "AUTH_FAILED",
		Message:   message,
		Retryable: false,
	}
}

// ErrNotFound creates a not found error.
func ErrNotFound(resource, id string) *DomainError {
	return &DomainError{
		Category:  ErrCatNotFound,
		Code:      "NOT_FOUND",
		Message:   fmt.Sprintf("%s not found: %s", resource, id),
		Retryable: false,
	}
}

// ErrWorkflowNotFound creates the not found error used by the analysis store.
func ErrWorkflowNotFound(id string) *DomainError {
	return &DomainError{
		Category:  ErrCatNotFound,
		Code:      CodeWorkflowNotFound,
		Message:   fmt.Sprintf("workflow not found: %s", id),
		Retryable: false,
		Details:   map[string]interface{}{"workflow_id": id},
	}
}

// ErrWorkflowExists creates the conflict error for a reused workflow id.
func ErrWorkflowExists(id string) *DomainError {
	return &DomainError{
		Category:  ErrCatConflict,
		Code:      CodeWorkflowExists,
		Message:   fmt.Sprintf("workflow already exists: %s", id),
		Retryable: false,
		Details:   map[string]interface{}{"workflow_id": id},
	}
}

// ErrInvalidApprovalState creates an error for approve/reject outside PENDING.
func ErrInvalidApprovalState(id string, current ApprovalStatus) *DomainError {
	return &DomainError{
		Category:  ErrCatConflict,
		Code:      CodeInvalidApprovalState,
		Message:   fmt.Sprintf("workflow %s is %s, only PENDING workflows can be approved or rejected", id, current),
		Retryable: false,
		Details: map[string]interface{}{
			"workflow_id":    id,
			"current_status": string(current),
		},
	}
}

// ErrCancelled creates a cancellation error.
func ErrCancelled(message string) *DomainError {
	return &DomainError{
		Category:  ErrCatCancelled,
		Code:      "CANCELLED",
		Message:   message,
		Retryable: false,
	}
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	var domErr *DomainError
	if errors.As(err, &domErr) {
		return domErr.Retryable
	}
	return false
}

// GetCategory extracts the error category.
func GetCategory(err error) ErrorCategory {
	var domErr *DomainError
	if errors.As(err, &domErr) {
		return domErr.Category
	}
	return ErrCatInternal
}

// IsCategory checks if an error belongs to a category.
func IsCategory(err error, cat ErrorCategory) bool {
	return GetCategory(err) == cat
}

// ErrorKind is the coarse classification recorded in the run error log and
// in the error counters.
type ErrorKind string

const (
	KindValidation     ErrorKind = "ValidationError"
	KindStageExecution ErrorKind = "StageExecutionError"
	KindSchema         ErrorKind = "SchemaViolationError"
	KindMerge          ErrorKind = "MergeError"
)

// KindOf maps an error onto the four error kinds. Anything that is not a
// validation, schema or merge error is a stage execution error.
func KindOf(err error) ErrorKind {
	switch GetCategory(err) {
	case ErrCatValidation:
		return KindValidation
	case ErrCatSchema:
		return KindSchema
	case ErrCatMerge:
		return KindMerge
	default:
		return KindStageExecution
	}
}

// FromContext converts a context error into a domain error.
func FromContext(err error, what string) *DomainError {
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout(what + " exceeded its deadline").WithCause(err)
	}
	if errors.Is(err, context.Canceled) {
		return ErrCancelled(what + " was cancelled").WithCause(err)
	}
	return ErrExecution(CodeStageFailed, what+" failed").WithCause(err)
}

// Predefined error codes
const (
	CodeWorkflowNotFound     = "WORKFLOW_NOT_FOUND"
	CodeInvalidApprovalState = "INVALID_APPROVAL_STATE"
	CodeWorkflowExists       = "WORKFLOW_EXISTS"
	CodeInvalidTransition    = "INVALID_TRANSITION"
	CodeFieldAlreadySet      = "FIELD_ALREADY_SET"
	CodeTimeout              = "TIMEOUT"

	// Validation error codes
	CodeWorkflowTooShort = "WORKFLOW_TOO_SHORT"
	CodeWorkflowTooLong  = "WORKFLOW_TOO_LONG"
	CodeInvalidInput     = "INVALID_INPUT"
	CodeInvalidConfig    = "INVALID_CONFIG"

	// Execution error codes
	CodeStageFailed     = "STAGE_FAILED"
	CodeModelFailed     = "MODEL_FAILED"
	CodeSchemaViolation = "SCHEMA_VIOLATION"
	CodeDAGCycle        = "DAG_CYCLE"

	// Merge error codes
	CodeDuplicateStep      = "DUPLICATE_STEP"
	CodeOrphanView         = "ORPHAN_VIEW"
	CodeDanglingDependency = "DANGLING_DEPENDENCY"
)
