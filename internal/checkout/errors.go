package checkout

import "fmt"

// ValidationError rejects malformed input before any side effect.
type ValidationError struct{ Msg string }

func (e *ValidationError) Error() string { return e.Msg }

// InsufficientStockError aborts the whole attempt; holds taken for earlier
// lines have already been released when this is returned.
type InsufficientStockError struct {
	ProductID string
	Name      string
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %q (%s): requested %d", e.Name, e.ProductID, e.Requested)
}

// PriceIntegrityError means the client-submitted shipping charge disagrees
// with the server computation beyond the rounding tolerance.
type PriceIntegrityError struct {
	ClientCents int64
	ServerCents int64
}

func (e *PriceIntegrityError) Error() string {
	return fmt.Sprintf("shipping cost mismatch: client submitted %d, server computed %d", e.ClientCents, e.ServerCents)
}
