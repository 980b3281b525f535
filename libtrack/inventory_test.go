package libtrack

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddBook(t *testing.T) {
	lib := testLib(t)
	admin := seedAdmin(t, lib)

	book, err := lib.Books.AddBook(admin.AsActor(), "The Hobbit", "J.R.R. Tolkien", 3)
	require.NoError(t, err)
	assert.Equal(t, 3, book.TotalCopies)
	assert.Equal(t, 3, book.AvailableCopies)

	_, err = lib.Books.AddBook(admin.AsActor(), "Empty", "Nobody", 0)
	assert.ErrorIs(t, err, ErrStockViolation)

	_, err = lib.Books.AddBook(Actor{Role: RoleBorrower}, "Sneaky", "Nobody", 1)
	assert.ErrorIs(t, err, ErrNotAuthorized)
}

func TestAdjustStock(t *testing.T) {
	lib := testLib(t)
	admin := seedAdmin(t, lib)
	actor := admin.AsActor()
	book := seedBook(t, lib, actor, "War and Peace", 5)

	// Issue three copies so available drops to 2.
	for _, name := range []string{"anna", "boris", "carla"} {
		user := seedBorrower(t, lib, name)
		_, err := lib.Loans.Issue(actor, book.ID, user.ID)
		require.NoError(t, err)
	}

	// Shrinking below the issued count is rejected and leaves state intact.
	err := lib.Books.AdjustStock(actor, book.ID, 2)
	assert.ErrorIs(t, err, ErrStockViolation)
	unchanged, err := lib.Books.GetBook(book.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, unchanged.TotalCopies)
	assert.Equal(t, 2, unchanged.AvailableCopies)

	// Shrinking to 4 moves both counts by the same delta.
	require.NoError(t, lib.Books.AdjustStock(actor, book.ID, 4))
	adjusted, err := lib.Books.GetBook(book.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, adjusted.TotalCopies)
	assert.Equal(t, 1, adjusted.AvailableCopies)
	assertStockInvariant(t, lib, book.ID)

	// Growing adds available copies one for one.
	require.NoError(t, lib.Books.AdjustStock(actor, book.ID, 10))
	grown, err := lib.Books.GetBook(book.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, grown.TotalCopies)
	assert.Equal(t, 7, grown.AvailableCopies)
	assertStockInvariant(t, lib, book.ID)

	err = lib.Books.AdjustStock(actor, 9999, 5)
	assert.ErrorIs(t, err, ErrBookNotFound)
}

func TestDeleteBookWithCopiesOutstanding(t *testing.T) {
	lib := testLib(t)
	admin := seedAdmin(t, lib)
	actor := admin.AsActor()
	book := seedBook(t, lib, actor, "Moby Dick", 2)
	user := seedBorrower(t, lib, "ishmael")

	_, err := lib.Loans.Issue(actor, book.ID, user.ID)
	require.NoError(t, err)

	_, err = lib.Books.DeleteBook(actor, book.ID, true)
	assert.ErrorIs(t, err, ErrBookInUse)

	// Still present.
	_, err = lib.Books.GetBook(book.ID)
	assert.NoError(t, err)
}

func TestDeleteBookCascadesHistory(t *testing.T) {
	lib := testLib(t)
	admin := seedAdmin(t, lib)
	actor := admin.AsActor()
	book := seedBook(t, lib, actor, "Hamlet", 1)
	user := seedBorrower(t, lib, "ophelia")

	_, err := lib.Loans.Issue(actor, book.ID, user.ID)
	require.NoError(t, err)
	_, err = lib.Loans.Return(actor, book.ID)
	require.NoError(t, err)

	// History exists, so an unconfirmed delete is refused.
	_, err = lib.Books.DeleteBook(actor, book.ID, false)
	assert.ErrorIs(t, err, ErrConfirmationNeeded)

	removed, err := lib.Books.DeleteBook(actor, book.ID, true)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = lib.Books.GetBook(book.ID)
	assert.ErrorIs(t, err, ErrBookNotFound)

	var loans int
	require.NoError(t, lib.db.db.QueryRow(`SELECT COUNT(*) FROM loans WHERE book_id=?`, book.ID).Scan(&loans))
	assert.Zero(t, loans)
}

func TestDeleteBookWithoutHistory(t *testing.T) {
	lib := testLib(t)
	admin := seedAdmin(t, lib)
	actor := admin.AsActor()
	book := seedBook(t, lib, actor, "Fresh Arrival", 2)

	// No history: no confirmation needed.
	removed, err := lib.Books.DeleteBook(actor, book.ID, false)
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestSearchBooks(t *testing.T) {
	lib := testLib(t)
	admin := seedAdmin(t, lib)
	actor := admin.AsActor()
	seedBook(t, lib, actor, "The Brothers Karamazov", 2)
	book2, err := lib.Books.AddBook(actor, "Crime and Punishment", "Fyodor Dostoevsky", 1)
	require.NoError(t, err)

	results, err := lib.Books.SearchBooks("DOSTOEVSKY")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, book2.ID, results[0].ID)

	results, err = lib.Books.SearchBooks("   ")
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestUpdateBookDetails(t *testing.T) {
	lib := testLib(t)
	admin := seedAdmin(t, lib)
	actor := admin.AsActor()
	book := seedBook(t, lib, actor, "1983", 1)

	require.NoError(t, lib.Books.UpdateBook(actor, book.ID, "1984", "George Orwell"))
	got, err := lib.Books.GetBook(book.ID)
	require.NoError(t, err)
	assert.Equal(t, "1984", got.Title)
	assert.Equal(t, "George Orwell", got.Author)

	err = lib.Books.UpdateBook(actor, 9999, "x", "y")
	assert.ErrorIs(t, err, ErrBookNotFound)
}
