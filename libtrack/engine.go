package libtrack

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// ClearReturnDate is the sentinel a caller passes to UpdateLoan to reopen a
// closed loan.
const ClearReturnDate = "clear"

// LoanEngine orchestrates the loan lifecycle. It is the sole writer of loan
// rows and the sole mover of available_copies, and every operation that
// touches more than one entity runs as a single transaction.
type LoanEngine struct {
	db    *Database
	notes *NotificationCenter
	log   zerolog.Logger

	now        func() time.Time
	loanPeriod int // days
	finePerDay decimal.Decimal
}

// NewLoanEngine wires the engine to its collaborators. loanPeriodDays and
// finePerDay fall back to 14 days and 1.00/day when zero.
func NewLoanEngine(db *Database, notes *NotificationCenter, log zerolog.Logger, loanPeriodDays int, finePerDay decimal.Decimal) *LoanEngine {
	if loanPeriodDays <= 0 {
		loanPeriodDays = DefaultLoanPeriodDays
	}
	if finePerDay.IsZero() {
		finePerDay = DefaultFinePerDay
	}
	return &LoanEngine{
		db:         db,
		notes:      notes,
		log:        log.With().Str("component", "loans").Logger(),
		now:        time.Now,
		loanPeriod: loanPeriodDays,
		finePerDay: finePerDay,
	}
}

// DefaultLoanPeriodDays is the standard loan period.
const DefaultLoanPeriodDays = 14

// Issue lends one copy of a book to a user: one copy comes off the shelf and
// an active loan row is created, all or nothing.
func (e *LoanEngine) Issue(actor Actor, bookID, userID int64) (*Loan, error) {
	if !actor.IsAdmin() {
		return nil, ErrNotAuthorized
	}

	var loan *Loan
	err := e.db.withTx("issue", func(tx *sql.Tx) error {
		if _, err := getUserBy(tx, `id=?`, userID); err != nil {
			return err
		}
		if err := decrementAvailable(tx, bookID); err != nil {
			return err
		}

		issued := truncateToDay(e.now())
		due := issued.AddDate(0, 0, e.loanPeriod)
		res, err := tx.Exec(
			`INSERT INTO loans(book_id,user_id,issue_date,due_date,return_date) VALUES(?,?,?,?,NULL)`,
			bookID, userID, formatDate(issued), formatDate(due))
		if err != nil {
			return storageErr("issue", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return storageErr("issue", err)
		}

		loan = &Loan{ID: id, BookID: bookID, UserID: userID, IssueDate: issued, DueDate: due}
		e.log.Info().Int64("loan_id", id).Int64("book_id", bookID).Int64("user_id", userID).
			Str("due", formatDate(due)).Msg("book issued")
		return nil
	})
	return loan, err
}

// ReturnReceipt reports the outcome of a return for display.
type ReturnReceipt struct {
	Loan        *Loan
	BookTitle   string
	UserName    string
	Fine        decimal.Decimal
	DaysOverdue int
}

// Return closes the oldest active loan for the book: the return date is set,
// the copy goes back on the shelf, open alerts for the loan are resolved, and
// the overdue fine is computed. All effects commit together or none do.
func (e *LoanEngine) Return(actor Actor, bookID int64) (*ReturnReceipt, error) {
	if !actor.IsAdmin() {
		return nil, ErrNotAuthorized
	}

	var receipt *ReturnReceipt
	err := e.db.withTx("return", func(tx *sql.Tx) error {
		if _, err := getBook(tx, bookID); err != nil {
			return err
		}

		loan, err := oldestActiveLoan(tx, bookID)
		if err != nil {
			return err
		}

		today := truncateToDay(e.now())
		amount, days := Fine(loan.DueDate, today, e.finePerDay)

		if _, err := tx.Exec(
			`UPDATE loans SET return_date=? WHERE id=?`, formatDate(today), loan.ID); err != nil {
			return storageErr("return", err)
		}
		if err := incrementAvailable(tx, bookID); err != nil {
			return err
		}
		if err := e.notes.loanClosed(tx, loan.ID); err != nil {
			return err
		}

		returned := today
		loan.ReturnDate = &returned

		var title, userName string
		if err := tx.QueryRow(`SELECT title FROM books WHERE id=?`, bookID).Scan(&title); err != nil {
			return storageErr("return", err)
		}
		if err := tx.QueryRow(`SELECT name FROM users WHERE id=?`, loan.UserID).Scan(&userName); err != nil {
			return storageErr("return", err)
		}

		receipt = &ReturnReceipt{Loan: loan, BookTitle: title, UserName: userName, Fine: amount, DaysOverdue: days}
		e.log.Info().Int64("loan_id", loan.ID).Int64("book_id", bookID).
			Int("days_overdue", days).Str("fine", amount.StringFixed(2)).Msg("book returned")
		return nil
	})
	return receipt, err
}

// UpdateLoan applies a manual correction. newDue and newReturn are calendar
// dates in YYYY-MM-DD form; an empty string keeps the current value and
// ClearReturnDate reopens a closed loan. Closing a loan puts its copy back
// and resolves its alerts; reopening takes a copy off the shelf again and
// fails with OutOfStock when none is free. When the corrected loan ends up
// active and due today, the due-today sweep re-runs so it is flagged
// immediately.
func (e *LoanEngine) UpdateLoan(actor Actor, loanID int64, newDue, newReturn string) (*Loan, error) {
	if !actor.IsAdmin() {
		return nil, ErrNotAuthorized
	}

	var updated *Loan
	err := e.db.withTx("update loan", func(tx *sql.Tx) error {
		loan, err := getLoan(tx, loanID)
		if err != nil {
			return err
		}

		due := loan.DueDate
		if newDue != "" {
			due, err = parseInputDate(newDue)
			if err != nil {
				return err
			}
			if _, err := tx.Exec(`UPDATE loans SET due_date=? WHERE id=?`, formatDate(due), loanID); err != nil {
				return storageErr("update loan", err)
			}
		}

		ret := loan.ReturnDate
		switch {
		case newReturn == "":
			// Keep current state.
		case newReturn == ClearReturnDate:
			if loan.State() == LoanClosed {
				if err := decrementAvailable(tx, loan.BookID); err != nil {
					return err
				}
				if _, err := tx.Exec(`UPDATE loans SET return_date=NULL WHERE id=?`, loanID); err != nil {
					return storageErr("update loan", err)
				}
				ret = nil
			}
		default:
			newRet, err := parseInputDate(newReturn)
			if err != nil {
				return err
			}
			if loan.State() == LoanActive {
				if err := incrementAvailable(tx, loan.BookID); err != nil {
					return err
				}
				if err := e.notes.loanClosed(tx, loanID); err != nil {
					return err
				}
			}
			if _, err := tx.Exec(`UPDATE loans SET return_date=? WHERE id=?`, formatDate(newRet), loanID); err != nil {
				return storageErr("update loan", err)
			}
			ret = &newRet
		}

		// A reopened or renewed loan due today should be flagged without
		// waiting for the next menu render.
		if ret == nil && formatDate(due) == formatDate(e.now()) {
			if _, err := e.notes.sweepDueTodayTx(tx); err != nil {
				return err
			}
		}

		updated = &Loan{ID: loanID, BookID: loan.BookID, UserID: loan.UserID,
			IssueDate: loan.IssueDate, DueDate: due, ReturnDate: ret}
		e.log.Info().Int64("loan_id", loanID).Str("due", formatDate(due)).
			Str("state", string(updated.State())).Msg("loan corrected")
		return nil
	})
	return updated, err
}

// DeleteLoan purges a loan record. Deleting an active loan requires explicit
// confirmation and puts the copy back on the shelf first, inverting the
// issue's effect; the loan's notifications go with it.
func (e *LoanEngine) DeleteLoan(actor Actor, loanID int64, confirmed bool) error {
	if !actor.IsAdmin() {
		return ErrNotAuthorized
	}

	return e.db.withTx("delete loan", func(tx *sql.Tx) error {
		loan, err := getLoan(tx, loanID)
		if err != nil {
			return err
		}

		if loan.State() == LoanActive {
			if !confirmed {
				return fmt.Errorf("%w: deleting an active loan restores one copy", ErrConfirmationNeeded)
			}
			if err := incrementAvailable(tx, loan.BookID); err != nil {
				return err
			}
		}
		if err := e.notes.loanPurged(tx, loanID); err != nil {
			return err
		}
		if _, err := tx.Exec(`DELETE FROM loans WHERE id=?`, loanID); err != nil {
			return storageErr("delete loan", err)
		}
		e.log.Info().Int64("loan_id", loanID).Bool("was_active", loan.State() == LoanActive).Msg("loan purged")
		return nil
	})
}

// GetLoan fetches a single loan.
func (e *LoanEngine) GetLoan(actor Actor, loanID int64) (*Loan, error) {
	if !actor.IsAdmin() {
		return nil, ErrNotAuthorized
	}
	return getLoan(e.db.db, loanID)
}

// ListLoans returns every loan joined with book and user details.
func (e *LoanEngine) ListLoans(actor Actor) ([]*LoanRecord, error) {
	if !actor.IsAdmin() {
		return nil, ErrNotAuthorized
	}
	return e.queryRecords(``)
}

// ListLoansForUser returns the loans of one user. Borrowers may only view
// their own.
func (e *LoanEngine) ListLoansForUser(actor Actor, userID int64) ([]*LoanRecord, error) {
	if !actor.IsAdmin() && actor.ID != userID {
		return nil, ErrNotAuthorized
	}
	return e.queryRecords(`WHERE l.user_id = ?`, userID)
}

func (e *LoanEngine) queryRecords(where string, args ...any) ([]*LoanRecord, error) {
	rows, err := e.db.db.Query(`
        SELECT l.id, b.title, b.author, u.name, l.issue_date, l.due_date, l.return_date
        FROM loans l
        JOIN books b ON b.id = l.book_id
        JOIN users u ON u.id = l.user_id `+where+`
        ORDER BY l.id`, args...)
	if err != nil {
		return nil, storageErr("list loans", err)
	}
	defer rows.Close()

	var records []*LoanRecord
	for rows.Next() {
		var (
			r          LoanRecord
			issue, due string
			ret        sql.NullString
		)
		if err := rows.Scan(&r.LoanID, &r.BookTitle, &r.BookAuthor, &r.UserName, &issue, &due, &ret); err != nil {
			return nil, storageErr("list loans", err)
		}
		if r.IssueDate, err = parseStoredDate(issue); err != nil {
			return nil, err
		}
		if r.DueDate, err = parseStoredDate(due); err != nil {
			return nil, err
		}
		if r.ReturnDate, err = parseOptionalDate(ret); err != nil {
			return nil, err
		}
		records = append(records, &r)
	}
	return records, rows.Err()
}

// ---------------------------------------------------------------------------
// Row helpers
// ---------------------------------------------------------------------------

func parseInputDate(s string) (time.Time, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q is not a YYYY-MM-DD date", ErrInvalidDate, s)
	}
	return t, nil
}

func getLoan(q querier, id int64) (*Loan, error) {
	return scanLoan(q.QueryRow(
		`SELECT id,book_id,user_id,issue_date,due_date,return_date FROM loans WHERE id=?`, id))
}

// oldestActiveLoan picks the active loan to settle on return. With copy-level
// stock a book can carry several active loans; the earliest issued one is
// settled first.
func oldestActiveLoan(tx *sql.Tx, bookID int64) (*Loan, error) {
	loan, err := scanLoan(tx.QueryRow(`
        SELECT id,book_id,user_id,issue_date,due_date,return_date FROM loans
        WHERE book_id=? AND return_date IS NULL
        ORDER BY issue_date, id LIMIT 1`, bookID))
	if errors.Is(err, ErrLoanNotFound) {
		return nil, ErrNoActiveLoan
	}
	return loan, err
}

func scanLoan(row *sql.Row) (*Loan, error) {
	var (
		l          Loan
		issue, due string
		ret        sql.NullString
	)
	err := row.Scan(&l.ID, &l.BookID, &l.UserID, &issue, &due, &ret)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrLoanNotFound
	}
	if err != nil {
		return nil, storageErr("get loan", err)
	}
	if l.IssueDate, err = parseStoredDate(issue); err != nil {
		return nil, err
	}
	if l.DueDate, err = parseStoredDate(due); err != nil {
		return nil, err
	}
	if l.ReturnDate, err = parseOptionalDate(ret); err != nil {
		return nil, err
	}
	return &l, nil
}
