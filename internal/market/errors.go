package market

import "fmt"

// NotFoundError: a referenced entity does not exist. Kind is the entity name
// ("product", "order", "user").
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

// InsufficientStockError aborts order placement before any mutation. It
// carries the remediation data the HTTP layer puts in the 409 body.
type InsufficientStockError struct {
	ProductID string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

// ValidationError: malformed request shape or an illegal state transition.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// PersistenceError wraps store failures. The orchestrator does not retry
// these; a failure after the commit point is surfaced, never swallowed.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
