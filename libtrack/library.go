package libtrack

import (
	"github.com/rs/zerolog"
)

// Library bundles the core components over one database, keeping CLI code
// simple. The presentation layer calls these components with validated
// scalar inputs and renders the results; it performs no business logic.
type Library struct {
	db *Database

	Books *Inventory
	Users *Directory
	Loans *LoanEngine
	Inbox *NotificationCenter
}

// Open opens (or creates) the SQLite database named by cfg and wires the
// components together.
func Open(cfg Config, log zerolog.Logger) (*Library, error) {
	rate, err := cfg.FineRate()
	if err != nil {
		return nil, err
	}

	db, err := NewDatabase(cfg.DBPath)
	if err != nil {
		return nil, err
	}

	inbox := NewNotificationCenter(db, log)
	return &Library{
		db:    db,
		Books: NewInventory(db, log),
		Users: NewDirectory(db, log),
		Loans: NewLoanEngine(db, inbox, log, cfg.LoanPeriodDays, rate),
		Inbox: inbox,
	}, nil
}

// Close closes the underlying database.
func (l *Library) Close() error { return l.db.Close() }
