package libtrack

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// NotificationCenter is the sole writer of notification rows. Alerts are
// derived from loan state by the due-today sweep; the loan engine triggers
// resolution through the loanClosed hook when a loan leaves the active state.
type NotificationCenter struct {
	db  *Database
	log zerolog.Logger
	now func() time.Time
}

// NewNotificationCenter wraps the database with inbox operations.
func NewNotificationCenter(db *Database, log zerolog.Logger) *NotificationCenter {
	return &NotificationCenter{
		db:  db,
		log: log.With().Str("component", "notifications").Logger(),
		now: time.Now,
	}
}

// SweepDueToday materializes a due-today alert for every active loan whose
// due date is today and has no open alert yet. Idempotent: safe to call on
// every menu render. Returns the number of alerts created.
func (nc *NotificationCenter) SweepDueToday() (int, error) {
	var created int
	err := nc.db.withTx("sweep due today", func(tx *sql.Tx) error {
		n, err := nc.sweepDueTodayTx(tx)
		created = n
		return err
	})
	return created, err
}

func (nc *NotificationCenter) sweepDueTodayTx(tx *sql.Tx) (int, error) {
	today := formatDate(nc.now())

	rows, err := tx.Query(`
        SELECT l.id, b.title, u.name
        FROM loans l
        JOIN books b ON b.id = l.book_id
        JOIN users u ON u.id = l.user_id
        WHERE l.due_date = ? AND l.return_date IS NULL`, today)
	if err != nil {
		return 0, storageErr("sweep", err)
	}
	defer rows.Close()

	type due struct {
		loanID   int64
		title    string
		userName string
	}
	var dues []due
	for rows.Next() {
		var d due
		if err := rows.Scan(&d.loanID, &d.title, &d.userName); err != nil {
			return 0, storageErr("sweep", err)
		}
		dues = append(dues, d)
	}
	if err := rows.Err(); err != nil {
		return 0, storageErr("sweep", err)
	}

	created := 0
	for _, d := range dues {
		var exists bool
		err := tx.QueryRow(
			`SELECT EXISTS(SELECT 1 FROM notifications WHERE loan_id=? AND kind=? AND status <> 'resolved')`,
			d.loanID, KindDueToday).Scan(&exists)
		if err != nil {
			return created, storageErr("sweep", err)
		}
		if exists {
			continue
		}

		msg := fmt.Sprintf("Book %q is expected today from %s.", d.title, d.userName)
		if _, err := tx.Exec(
			`INSERT INTO notifications(loan_id,kind,message,status,created_at) VALUES(?,?,?,?,?)`,
			d.loanID, KindDueToday, msg, string(NotificationUnread), today); err != nil {
			return created, storageErr("sweep", err)
		}
		created++
	}

	if created > 0 {
		nc.log.Info().Int("created", created).Msg("due-today alerts generated")
	}
	return created, nil
}

// ListOpen returns all non-resolved notifications, oldest first.
func (nc *NotificationCenter) ListOpen() ([]*Notification, error) {
	rows, err := nc.db.db.Query(`
        SELECT id,loan_id,kind,message,status,created_at FROM notifications
        WHERE status <> 'resolved' ORDER BY id`)
	if err != nil {
		return nil, storageErr("list notifications", err)
	}
	defer rows.Close()

	var notes []*Notification
	for rows.Next() {
		var (
			n       Notification
			created string
		)
		if err := rows.Scan(&n.ID, &n.LoanID, &n.Kind, &n.Message, &n.Status, &created); err != nil {
			return nil, storageErr("list notifications", err)
		}
		at, err := parseStoredDate(created)
		if err != nil {
			return nil, err
		}
		n.CreatedAt = at
		notes = append(notes, &n)
	}
	return notes, rows.Err()
}

// UnreadCount powers the inbox badge on the admin menu.
func (nc *NotificationCenter) UnreadCount() (int, error) {
	var n int
	err := nc.db.db.QueryRow(
		`SELECT COUNT(*) FROM notifications WHERE status=?`, string(NotificationUnread)).Scan(&n)
	if err != nil {
		return 0, storageErr("unread count", err)
	}
	return n, nil
}

// MarkRead flips a single unread notification to read.
func (nc *NotificationCenter) MarkRead(id int64) error {
	_, err := nc.db.db.Exec(
		`UPDATE notifications SET status=? WHERE id=? AND status=?`,
		string(NotificationRead), id, string(NotificationUnread))
	return storageErr("mark read", err)
}

// MarkAllRead flips every unread notification to read.
func (nc *NotificationCenter) MarkAllRead() error {
	_, err := nc.db.db.Exec(
		`UPDATE notifications SET status=? WHERE status=?`,
		string(NotificationRead), string(NotificationUnread))
	return storageErr("mark all read", err)
}

// Resolve closes a notification. Resolving one that is already resolved is a
// no-op, not an error.
func (nc *NotificationCenter) Resolve(id int64) error {
	_, err := nc.db.db.Exec(
		`UPDATE notifications SET status=? WHERE id=?`, string(NotificationResolved), id)
	return storageErr("resolve", err)
}

// ---------------------------------------------------------------------------
// Loan lifecycle hooks (called by the loan engine inside its transactions)
// ---------------------------------------------------------------------------

// loanClosed resolves every open alert for the loan. Reopening deliberately
// has no inverse hook: the next sweep recreates the alert if the loan is
// still due today.
func (nc *NotificationCenter) loanClosed(tx *sql.Tx, loanID int64) error {
	_, err := tx.Exec(
		`UPDATE notifications SET status=? WHERE loan_id=? AND status <> ?`,
		string(NotificationResolved), loanID, string(NotificationResolved))
	return storageErr("resolve loan alerts", err)
}

// loanPurged removes the loan's notifications ahead of the loan row itself,
// keeping the foreign key satisfied within the purge transaction.
func (nc *NotificationCenter) loanPurged(tx *sql.Tx, loanID int64) error {
	_, err := tx.Exec(`DELETE FROM notifications WHERE loan_id=?`, loanID)
	return storageErr("purge loan alerts", err)
}
