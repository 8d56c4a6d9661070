package domain

import (
	"fmt"
)

// Category sentinels — use with NewDomainError to tag failures.
var (
	ErrNotFound     = fmt.Errorf("not found")
	ErrDuplicate    = fmt.Errorf("duplicate")
	ErrTimeout      = fmt.Errorf("operation timed out")
	ErrInvalidInput = fmt.Errorf("invalid input")
)

// Sentinel errors for the mesh domain.
var (
	ErrAgentNotFound        = fmt.Errorf("agent not found")
	ErrAgentDuplicate       = fmt.Errorf("agent already registered")
	ErrNoAgents             = fmt.Errorf("no agents registered")
	ErrAgentUnreachable     = fmt.Errorf("agent unreachable")
	ErrTransport            = fmt.Errorf("transport failure")
	ErrInvalidResponse      = fmt.Errorf("invalid response from agent")
	ErrClassifier           = fmt.Errorf("classifier call failed")
	ErrConversationNotFound = fmt.Errorf("conversation not found")
	ErrConversationComplete = fmt.Errorf("conversation already complete")
	ErrConfigLoad           = fmt.Errorf("failed to load configuration")
	ErrToolFailure          = fmt.Errorf("tool execution failed")
	ErrToolNotFound         = fmt.Errorf("tool not found")
)

// DomainError wraps a sentinel error with operation context.
type DomainError struct {
	Op     string // operation name (e.g., "Directory.Resolve")
	Err    error  // underlying sentinel or wrapped error
	Detail string // human-readable detail
}

func (e *DomainError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Err)
}

func (e *DomainError) Unwrap() error { return e.Err }

// NewDomainError creates a new DomainError.
func NewDomainError(op string, err error, detail string) *DomainError {
	return &DomainError{Op: op, Err: err, Detail: detail}
}

// WrapOp adds operation context to an error using fmt.Errorf wrapping.
// Returns nil if err is nil, enabling idiomatic use: return domain.WrapOp("op", err)
func WrapOp(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}
