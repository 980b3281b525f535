package libtrack

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueConsumesLastCopy(t *testing.T) {
	lib := testLib(t)
	admin := seedAdmin(t, lib)
	actor := admin.AsActor()
	book := seedBook(t, lib, actor, "The Last Copy", 1)
	first := seedBorrower(t, lib, "first")
	second := seedBorrower(t, lib, "second")

	loan, err := lib.Loans.Issue(actor, book.ID, first.ID)
	require.NoError(t, err)
	assert.Equal(t, LoanActive, loan.State())
	assert.Equal(t, loan.IssueDate.AddDate(0, 0, DefaultLoanPeriodDays), loan.DueDate)

	got, err := lib.Books.GetBook(book.ID)
	require.NoError(t, err)
	assert.Zero(t, got.AvailableCopies)

	// No copies left: the second issue fails and nothing changes.
	_, err = lib.Loans.Issue(actor, book.ID, second.ID)
	assert.ErrorIs(t, err, ErrOutOfStock)

	got, err = lib.Books.GetBook(book.ID)
	require.NoError(t, err)
	assert.Zero(t, got.AvailableCopies)
	assertStockInvariant(t, lib, book.ID)
}

func TestIssueRejectsUnknownEntities(t *testing.T) {
	lib := testLib(t)
	admin := seedAdmin(t, lib)
	actor := admin.AsActor()
	book := seedBook(t, lib, actor, "Known Book", 1)
	user := seedBorrower(t, lib, "known")

	_, err := lib.Loans.Issue(actor, book.ID, 9999)
	assert.ErrorIs(t, err, ErrUserNotFound)

	_, err = lib.Loans.Issue(actor, 9999, user.ID)
	assert.ErrorIs(t, err, ErrBookNotFound)

	// The failed attempts must not touch the shelf.
	got, err := lib.Books.GetBook(book.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.AvailableCopies)
}

func TestReturnSameDayRoundTrip(t *testing.T) {
	lib := testLib(t)
	admin := seedAdmin(t, lib)
	actor := admin.AsActor()
	book := seedBook(t, lib, actor, "Quick Read", 2)
	user := seedBorrower(t, lib, "speedy")

	_, err := lib.Loans.Issue(actor, book.ID, user.ID)
	require.NoError(t, err)

	receipt, err := lib.Loans.Return(actor, book.ID)
	require.NoError(t, err)
	assert.True(t, receipt.Fine.IsZero(), "same-day return carries no fine")
	assert.Zero(t, receipt.DaysOverdue)
	assert.Equal(t, "Quick Read", receipt.BookTitle)
	require.NotNil(t, receipt.Loan.ReturnDate)
	assert.Equal(t, LoanClosed, receipt.Loan.State())

	got, err := lib.Books.GetBook(book.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.AvailableCopies)
	assertStockInvariant(t, lib, book.ID)

	// Nothing left to settle.
	_, err = lib.Loans.Return(actor, book.ID)
	assert.ErrorIs(t, err, ErrNoActiveLoan)
}

func TestReturnSettlesOldestLoanFirst(t *testing.T) {
	lib := testLib(t)
	admin := seedAdmin(t, lib)
	actor := admin.AsActor()
	book := seedBook(t, lib, actor, "Popular Title", 3)
	early := seedBorrower(t, lib, "early")
	late := seedBorrower(t, lib, "late")

	start := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)
	setClock(lib, start)
	older, err := lib.Loans.Issue(actor, book.ID, early.ID)
	require.NoError(t, err)

	setClock(lib, start.AddDate(0, 0, 2))
	_, err = lib.Loans.Issue(actor, book.ID, late.ID)
	require.NoError(t, err)

	receipt, err := lib.Loans.Return(actor, book.ID)
	require.NoError(t, err)
	assert.Equal(t, older.ID, receipt.Loan.ID, "earliest issued loan settles first")
	assert.Equal(t, "Borrower early", receipt.UserName)
}

func TestOverdueReturnFineAndAlertResolution(t *testing.T) {
	lib := testLib(t)
	admin := seedAdmin(t, lib)
	actor := admin.AsActor()
	book := seedBook(t, lib, actor, "Long Overdue", 1)
	user := seedBorrower(t, lib, "tardy")

	issued := time.Date(2026, 5, 1, 9, 30, 0, 0, time.UTC)
	setClock(lib, issued)
	loan, err := lib.Loans.Issue(actor, book.ID, user.ID)
	require.NoError(t, err)

	// Day 14: the sweep flags the loan as due today.
	setClock(lib, issued.AddDate(0, 0, DefaultLoanPeriodDays))
	created, err := lib.Inbox.SweepDueToday()
	require.NoError(t, err)
	assert.Equal(t, 1, created)

	// Day 24: returned ten days late at 1.00 per day.
	setClock(lib, issued.AddDate(0, 0, DefaultLoanPeriodDays+10))
	receipt, err := lib.Loans.Return(actor, book.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, receipt.DaysOverdue)
	assert.Equal(t, "10.00", receipt.Fine.StringFixed(2))

	// The return resolves the loan's open alert.
	open, err := lib.Inbox.ListOpen()
	require.NoError(t, err)
	assert.Empty(t, open)

	var resolved int
	require.NoError(t, lib.db.db.QueryRow(
		`SELECT COUNT(*) FROM notifications WHERE loan_id=? AND status='resolved'`, loan.ID).Scan(&resolved))
	assert.Equal(t, 1, resolved)
}

func TestFineUsesConfiguredRate(t *testing.T) {
	lib := testLib(t)
	lib.Loans.finePerDay = decimal.RequireFromString("2.50")
	admin := seedAdmin(t, lib)
	actor := admin.AsActor()
	book := seedBook(t, lib, actor, "Premium Shelf", 1)
	user := seedBorrower(t, lib, "pricey")

	issued := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	setClock(lib, issued)
	_, err := lib.Loans.Issue(actor, book.ID, user.ID)
	require.NoError(t, err)

	setClock(lib, issued.AddDate(0, 0, DefaultLoanPeriodDays+4))
	receipt, err := lib.Loans.Return(actor, book.ID)
	require.NoError(t, err)
	assert.Equal(t, "10.00", receipt.Fine.StringFixed(2))
	assert.Equal(t, 4, receipt.DaysOverdue)
}

func TestUpdateLoanManualClose(t *testing.T) {
	lib := testLib(t)
	admin := seedAdmin(t, lib)
	actor := admin.AsActor()
	book := seedBook(t, lib, actor, "Paper Trail", 1)
	user := seedBorrower(t, lib, "clerk")

	loan, err := lib.Loans.Issue(actor, book.ID, user.ID)
	require.NoError(t, err)

	// Closing by hand puts the copy back like a regular return.
	updated, err := lib.Loans.UpdateLoan(actor, loan.ID, "", "2026-06-20")
	require.NoError(t, err)
	assert.Equal(t, LoanClosed, updated.State())

	got, err := lib.Books.GetBook(book.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.AvailableCopies)
	assertStockInvariant(t, lib, book.ID)
}

func TestUpdateLoanReopenNeedsStock(t *testing.T) {
	lib := testLib(t)
	admin := seedAdmin(t, lib)
	actor := admin.AsActor()
	book := seedBook(t, lib, actor, "Contested Copy", 1)
	alice := seedBorrower(t, lib, "alice")
	bob := seedBorrower(t, lib, "bob")

	closed, err := lib.Loans.Issue(actor, book.ID, alice.ID)
	require.NoError(t, err)
	_, err = lib.Loans.Return(actor, book.ID)
	require.NoError(t, err)

	// The freed copy goes straight to the next borrower.
	_, err = lib.Loans.Issue(actor, book.ID, bob.ID)
	require.NoError(t, err)

	// Reopening the settled loan would need a copy that is out.
	_, err = lib.Loans.UpdateLoan(actor, closed.ID, "", ClearReturnDate)
	assert.ErrorIs(t, err, ErrOutOfStock)

	// Once the copy is back, the reopen goes through.
	_, err = lib.Loans.Return(actor, book.ID)
	require.NoError(t, err)
	reopened, err := lib.Loans.UpdateLoan(actor, closed.ID, "", ClearReturnDate)
	require.NoError(t, err)
	assert.Equal(t, LoanActive, reopened.State())
	assertStockInvariant(t, lib, book.ID)
}

func TestUpdateLoanDueTodayTriggersSweep(t *testing.T) {
	lib := testLib(t)
	admin := seedAdmin(t, lib)
	actor := admin.AsActor()
	book := seedBook(t, lib, actor, "Renewed", 1)
	user := seedBorrower(t, lib, "renewer")

	today := time.Date(2026, 7, 10, 12, 0, 0, 0, time.UTC)
	setClock(lib, today)
	loan, err := lib.Loans.Issue(actor, book.ID, user.ID)
	require.NoError(t, err)

	// Pulling the due date forward to today flags the loan immediately.
	_, err = lib.Loans.UpdateLoan(actor, loan.ID, "2026-07-10", "")
	require.NoError(t, err)

	open, err := lib.Inbox.ListOpen()
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, loan.ID, open[0].LoanID)
	assert.Equal(t, KindDueToday, open[0].Kind)
}

func TestUpdateLoanRejectsMalformedDates(t *testing.T) {
	lib := testLib(t)
	admin := seedAdmin(t, lib)
	actor := admin.AsActor()
	book := seedBook(t, lib, actor, "Typo Prone", 1)
	user := seedBorrower(t, lib, "fumble")

	loan, err := lib.Loans.Issue(actor, book.ID, user.ID)
	require.NoError(t, err)

	_, err = lib.Loans.UpdateLoan(actor, loan.ID, "20-06-2026", "")
	assert.ErrorIs(t, err, ErrInvalidDate)

	_, err = lib.Loans.UpdateLoan(actor, loan.ID, "", "soon")
	assert.ErrorIs(t, err, ErrInvalidDate)

	_, err = lib.Loans.UpdateLoan(actor, 9999, "2026-07-01", "")
	assert.ErrorIs(t, err, ErrLoanNotFound)
}

func TestDeleteLoanActiveNeedsConfirmation(t *testing.T) {
	lib := testLib(t)
	admin := seedAdmin(t, lib)
	actor := admin.AsActor()
	book := seedBook(t, lib, actor, "Mistaken Entry", 1)
	user := seedBorrower(t, lib, "oops")

	loan, err := lib.Loans.Issue(actor, book.ID, user.ID)
	require.NoError(t, err)

	err = lib.Loans.DeleteLoan(actor, loan.ID, false)
	assert.ErrorIs(t, err, ErrConfirmationNeeded)
	_, err = lib.Loans.GetLoan(actor, loan.ID)
	assert.NoError(t, err, "unconfirmed delete must leave the loan alone")

	require.NoError(t, lib.Loans.DeleteLoan(actor, loan.ID, true))

	_, err = lib.Loans.GetLoan(actor, loan.ID)
	assert.ErrorIs(t, err, ErrLoanNotFound)

	got, err := lib.Books.GetBook(book.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.AvailableCopies, "purging an active loan restores its copy")
}

func TestDeleteLoanClosedPurgesAlerts(t *testing.T) {
	lib := testLib(t)
	admin := seedAdmin(t, lib)
	actor := admin.AsActor()
	book := seedBook(t, lib, actor, "Old Record", 1)
	user := seedBorrower(t, lib, "archivist")

	issued := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	setClock(lib, issued)
	loan, err := lib.Loans.Issue(actor, book.ID, user.ID)
	require.NoError(t, err)

	setClock(lib, issued.AddDate(0, 0, DefaultLoanPeriodDays))
	_, err = lib.Inbox.SweepDueToday()
	require.NoError(t, err)
	_, err = lib.Loans.Return(actor, book.ID)
	require.NoError(t, err)

	// Closed loans delete without confirmation, taking their alerts along.
	require.NoError(t, lib.Loans.DeleteLoan(actor, loan.ID, false))

	var remaining int
	require.NoError(t, lib.db.db.QueryRow(
		`SELECT COUNT(*) FROM notifications WHERE loan_id=?`, loan.ID).Scan(&remaining))
	assert.Zero(t, remaining)

	got, err := lib.Books.GetBook(book.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.AvailableCopies, "deleting a closed loan must not touch stock")
}

func TestLoanVisibility(t *testing.T) {
	lib := testLib(t)
	admin := seedAdmin(t, lib)
	actor := admin.AsActor()
	book := seedBook(t, lib, actor, "Shared Shelf", 2)
	alice := seedBorrower(t, lib, "visalice")
	bob := seedBorrower(t, lib, "visbob")

	_, err := lib.Loans.Issue(actor, book.ID, alice.ID)
	require.NoError(t, err)
	_, err = lib.Loans.Issue(actor, book.ID, bob.ID)
	require.NoError(t, err)

	all, err := lib.Loans.ListLoans(actor)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	mine, err := lib.Loans.ListLoansForUser(alice.AsActor(), alice.ID)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "Shared Shelf", mine[0].BookTitle)

	// A borrower cannot read another user's history or use admin operations.
	_, err = lib.Loans.ListLoansForUser(alice.AsActor(), bob.ID)
	assert.ErrorIs(t, err, ErrNotAuthorized)
	_, err = lib.Loans.ListLoans(alice.AsActor())
	assert.ErrorIs(t, err, ErrNotAuthorized)
	_, err = lib.Loans.Issue(alice.AsActor(), book.ID, alice.ID)
	assert.ErrorIs(t, err, ErrNotAuthorized)
	_, err = lib.Loans.Return(alice.AsActor(), book.ID)
	assert.ErrorIs(t, err, ErrNotAuthorized)
	err = lib.Loans.DeleteLoan(alice.AsActor(), 1, true)
	assert.ErrorIs(t, err, ErrNotAuthorized)
}
