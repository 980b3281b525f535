package libtrack

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// Inventory owns book records and is the only component allowed to move
// available_copies (the loan engine calls through it inside its own
// transactions).
type Inventory struct {
	db  *Database
	log zerolog.Logger
}

// NewInventory wraps the database with catalog operations.
func NewInventory(db *Database, log zerolog.Logger) *Inventory {
	return &Inventory{db: db, log: log.With().Str("component", "inventory").Logger()}
}

// AddBook creates a catalog entry with quantity copies, all available.
func (inv *Inventory) AddBook(actor Actor, title, author string, quantity int) (*Book, error) {
	if !actor.IsAdmin() {
		return nil, ErrNotAuthorized
	}
	if quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity must be positive", ErrStockViolation)
	}

	res, err := inv.db.addBookStmt.Exec(title, author, quantity, quantity)
	if err != nil {
		return nil, storageErr("add book", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, storageErr("add book", err)
	}

	inv.log.Info().Int64("book_id", id).Str("title", title).Int("copies", quantity).Msg("book added")
	return &Book{ID: id, Title: title, Author: author, TotalCopies: quantity, AvailableCopies: quantity}, nil
}

// GetBook fetches a single book.
func (inv *Inventory) GetBook(id int64) (*Book, error) {
	return getBook(inv.db.db, id)
}

// ListBooks returns the whole catalog ordered by id.
func (inv *Inventory) ListBooks() ([]*Book, error) {
	return inv.queryBooks(`SELECT id,title,author,total_copies,available_copies FROM books ORDER BY id`)
}

// SearchBooks matches the keyword against title and author, case-insensitive.
func (inv *Inventory) SearchBooks(keyword string) ([]*Book, error) {
	if strings.TrimSpace(keyword) == "" {
		return []*Book{}, nil
	}
	pattern := "%" + strings.ToLower(keyword) + "%"
	return inv.queryBooks(`
        SELECT id,title,author,total_copies,available_copies FROM books
        WHERE lower(title) LIKE ? OR lower(author) LIKE ?
        ORDER BY id`, pattern, pattern)
}

// UpdateBook rewrites title and author.
func (inv *Inventory) UpdateBook(actor Actor, id int64, title, author string) error {
	if !actor.IsAdmin() {
		return ErrNotAuthorized
	}
	res, err := inv.db.db.Exec(`UPDATE books SET title=?, author=? WHERE id=?`, title, author, id)
	if err != nil {
		return storageErr("update book", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrBookNotFound
	}
	return nil
}

// AdjustStock changes total_copies to newTotal. The delta is applied to both
// total and available so the issued count stays intact; shrinking below the
// issued count is rejected.
func (inv *Inventory) AdjustStock(actor Actor, bookID int64, newTotal int) error {
	if !actor.IsAdmin() {
		return ErrNotAuthorized
	}
	if newTotal < 0 {
		return fmt.Errorf("%w: total cannot be negative", ErrStockViolation)
	}

	return inv.db.withTx("adjust stock", func(tx *sql.Tx) error {
		book, err := getBook(tx, bookID)
		if err != nil {
			return err
		}
		issued := book.IssuedCopies()
		if newTotal < issued {
			return fmt.Errorf("%w: %d issued, cannot shrink to %d", ErrStockViolation, issued, newTotal)
		}
		_, err = tx.Exec(`UPDATE books SET total_copies=?, available_copies=? WHERE id=?`,
			newTotal, newTotal-issued, bookID)
		if err != nil {
			return storageErr("adjust stock", err)
		}
		inv.log.Info().Int64("book_id", bookID).Int("total", newTotal).Msg("stock adjusted")
		return nil
	})
}

// DeleteBook removes a book. It is rejected while any copy is out on loan.
// When closed loan history exists, the caller must pass confirmHistory to
// cascade the history (and its notifications) along with the book. Returns
// the number of history rows removed.
func (inv *Inventory) DeleteBook(actor Actor, bookID int64, confirmHistory bool) (int, error) {
	if !actor.IsAdmin() {
		return 0, ErrNotAuthorized
	}

	var removed int
	err := inv.db.withTx("delete book", func(tx *sql.Tx) error {
		book, err := getBook(tx, bookID)
		if err != nil {
			return err
		}
		if book.AvailableCopies < book.TotalCopies {
			return fmt.Errorf("%w: %d copies outstanding", ErrBookInUse, book.IssuedCopies())
		}

		var history int
		if err := tx.QueryRow(`SELECT COUNT(*) FROM loans WHERE book_id=?`, bookID).Scan(&history); err != nil {
			return storageErr("delete book", err)
		}
		if history > 0 {
			if !confirmHistory {
				return fmt.Errorf("%w: %d loan records would be erased", ErrConfirmationNeeded, history)
			}
			if _, err := tx.Exec(
				`DELETE FROM notifications WHERE loan_id IN (SELECT id FROM loans WHERE book_id=?)`, bookID); err != nil {
				return storageErr("delete book", err)
			}
			if _, err := tx.Exec(`DELETE FROM loans WHERE book_id=?`, bookID); err != nil {
				return storageErr("delete book", err)
			}
		}
		if _, err := tx.Exec(`DELETE FROM books WHERE id=?`, bookID); err != nil {
			return storageErr("delete book", err)
		}
		removed = history
		inv.log.Info().Int64("book_id", bookID).Int("history_removed", history).Msg("book deleted")
		return nil
	})
	return removed, err
}

// ---------------------------------------------------------------------------
// Transaction-scoped stock movements used by the loan engine
// ---------------------------------------------------------------------------

// decrementAvailable takes one copy off the shelf. The guarded UPDATE makes
// the stock-floor check and the write a single step.
func decrementAvailable(tx *sql.Tx, bookID int64) error {
	res, err := tx.Exec(
		`UPDATE books SET available_copies = available_copies - 1
         WHERE id=? AND available_copies > 0`, bookID)
	if err != nil {
		return storageErr("decrement stock", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := getBook(tx, bookID); err != nil {
			return err
		}
		return ErrOutOfStock
	}
	return nil
}

// incrementAvailable puts one copy back. Exceeding total_copies would mean a
// broken invariant elsewhere, so it is refused rather than papered over.
func incrementAvailable(tx *sql.Tx, bookID int64) error {
	res, err := tx.Exec(
		`UPDATE books SET available_copies = available_copies + 1
         WHERE id=? AND available_copies < total_copies`, bookID)
	if err != nil {
		return storageErr("increment stock", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := getBook(tx, bookID); err != nil {
			return err
		}
		return ErrOverCapacity
	}
	return nil
}

func getBook(q querier, id int64) (*Book, error) {
	var b Book
	err := q.QueryRow(`SELECT id,title,author,total_copies,available_copies FROM books WHERE id=?`, id).
		Scan(&b.ID, &b.Title, &b.Author, &b.TotalCopies, &b.AvailableCopies)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBookNotFound
	}
	if err != nil {
		return nil, storageErr("get book", err)
	}
	return &b, nil
}

func (inv *Inventory) queryBooks(query string, args ...any) ([]*Book, error) {
	rows, err := inv.db.db.Query(query, args...)
	if err != nil {
		return nil, storageErr("list books", err)
	}
	defer rows.Close()

	var books []*Book
	for rows.Next() {
		var b Book
		if err := rows.Scan(&b.ID, &b.Title, &b.Author, &b.TotalCopies, &b.AvailableCopies); err != nil {
			return nil, storageErr("list books", err)
		}
		books = append(books, &b)
	}
	return books, rows.Err()
}
