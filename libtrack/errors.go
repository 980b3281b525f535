package libtrack

import (
	"errors"
	"fmt"
)

// Typed failures returned by core operations. All are recoverable: state is
// left unchanged (the surrounding transaction rolls back) and the caller
// decides whether to re-prompt, log, or abort.
var (
	ErrBookNotFound        = errors.New("book not found")
	ErrUserNotFound        = errors.New("user not found")
	ErrLoanNotFound        = errors.New("loan not found")
	ErrOutOfStock          = errors.New("no available copies")
	ErrOverCapacity        = errors.New("available copies would exceed total")
	ErrStockViolation      = errors.New("total copies below issued count")
	ErrBookInUse           = errors.New("book has copies out on loan")
	ErrDuplicateUsername   = errors.New("username already taken")
	ErrLastAdminForbidden  = errors.New("cannot remove the last administrator")
	ErrSelfDeleteForbidden = errors.New("cannot delete your own account")
	ErrHasActiveLoans      = errors.New("user has active loans")
	ErrNoActiveLoan        = errors.New("no active loan for this book")
	ErrInvalidDate         = errors.New("invalid date")
	ErrInvalidRole         = errors.New("unknown role")
	ErrInvalidCredentials  = errors.New("invalid username or password")
	ErrNotAuthorized       = errors.New("operation requires administrator role")
	ErrConfirmationNeeded  = errors.New("operation requires explicit confirmation")
)

// ActiveLoansError carries the active-loan count alongside ErrHasActiveLoans
// so callers can report it.
type ActiveLoansError struct {
	Count int
}

func (e *ActiveLoansError) Error() string {
	return fmt.Sprintf("user has %d active loan(s)", e.Count)
}

// Unwrap makes errors.Is(err, ErrHasActiveLoans) hold.
func (e *ActiveLoansError) Unwrap() error { return ErrHasActiveLoans }

// StorageError wraps driver and SQL failures so callers can distinguish
// business rejections from infrastructure faults.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string { return fmt.Sprintf("storage failure in %s: %v", e.Op, e.Err) }

func (e *StorageError) Unwrap() error { return e.Err }

func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: err}
}
