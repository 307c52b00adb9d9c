package portfolio

import "errors"

// RejectionError is a validation or business-rule rejection. The trade is
// refused with a human-readable reason and no state is mutated.
type RejectionError struct {
	Reason string
}

func (e *RejectionError) Error() string { return e.Reason }

// Rejection reasons, in the order the engine checks them.
var (
	ErrSymbolRequired    = &RejectionError{Reason: "symbol required"}
	ErrInvalidStock      = &RejectionError{Reason: "invalid stock entry"}
	ErrInvalidShareInput = &RejectionError{Reason: "invalid share input"}
	ErrInsufficientFunds = &RejectionError{Reason: "insufficient funds"}
	ErrSelectStock       = &RejectionError{Reason: "please select stock"}
	ErrInvalidShares     = &RejectionError{Reason: "invalid shares"}
)

// IsRejection reports whether err is a RejectionError anywhere in its chain.
func IsRejection(err error) bool {
	var r *RejectionError
	return errors.As(err, &r)
}

// DependencyError marks a quote provider failure. It is deliberately distinct
// from a not-found rejection: the symbol may be perfectly valid while the
// provider is down.
type DependencyError struct {
	Err error
}

func (e *DependencyError) Error() string { return "quote provider failure: " + e.Err.Error() }

func (e *DependencyError) Unwrap() error { return e.Err }

// IsDependencyFailure reports whether err is a DependencyError anywhere in
// its chain.
func IsDependencyFailure(err error) bool {
	var d *DependencyError
	return errors.As(err, &d)
}
