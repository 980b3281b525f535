package libtrack

import "time"

// Role of a directory user.
type Role string

const (
	RoleAdministrator Role = "administrator"
	RoleBorrower      Role = "borrower"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleAdministrator || r == RoleBorrower
}

// LoanState is derived from the presence of a return date.
type LoanState string

const (
	LoanActive LoanState = "active"
	LoanClosed LoanState = "closed"
)

// NotificationStatus tracks inbox state of an alert.
type NotificationStatus string

const (
	NotificationUnread   NotificationStatus = "unread"
	NotificationRead     NotificationStatus = "read"
	NotificationResolved NotificationStatus = "resolved"
)

// KindDueToday is the only alert kind currently emitted by the sweep.
const KindDueToday = "due-today"

// Book is a catalog entry with copy-level stock. The invariant maintained by
// the loan engine: TotalCopies - AvailableCopies equals the number of active
// loans referencing the book.
type Book struct {
	ID              int64  `json:"id"`
	Title           string `json:"title"`
	Author          string `json:"author"`
	TotalCopies     int    `json:"total_copies"`
	AvailableCopies int    `json:"available_copies"`
}

// IssuedCopies is the number of copies currently out on loan.
func (b *Book) IssuedCopies() int { return b.TotalCopies - b.AvailableCopies }

// User is a directory entry. PasswordHash is an opaque bcrypt hash; the core
// never inspects it beyond equality checks at the authentication boundary.
type User struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Username     string `json:"username"`
	Phone        string `json:"phone"`
	PasswordHash string `json:"-"`
	Role         Role   `json:"role"`
}

// AsActor returns the actor identity for operations performed by this user.
func (u *User) AsActor() Actor { return Actor{ID: u.ID, Role: u.Role} }

// Loan links a book copy to a user for a bounded period. ReturnDate is nil
// while the loan is active.
type Loan struct {
	ID         int64      `json:"id"`
	BookID     int64      `json:"book_id"`
	UserID     int64      `json:"user_id"`
	IssueDate  time.Time  `json:"issue_date"`
	DueDate    time.Time  `json:"due_date"`
	ReturnDate *time.Time `json:"return_date,omitempty"`
}

// State derives the loan state from the return date.
func (l *Loan) State() LoanState {
	if l.ReturnDate == nil {
		return LoanActive
	}
	return LoanClosed
}

// LoanRecord is a denormalized loan row for display.
type LoanRecord struct {
	LoanID     int64      `json:"loan_id"`
	BookTitle  string     `json:"book_title"`
	BookAuthor string     `json:"book_author"`
	UserName   string     `json:"user_name"`
	IssueDate  time.Time  `json:"issue_date"`
	DueDate    time.Time  `json:"due_date"`
	ReturnDate *time.Time `json:"return_date,omitempty"`
}

// Notification is a due-today alert derived from loan state.
type Notification struct {
	ID        int64              `json:"id"`
	LoanID    int64              `json:"loan_id"`
	Kind      string             `json:"kind"`
	Message   string             `json:"message"`
	Status    NotificationStatus `json:"status"`
	CreatedAt time.Time          `json:"created_at"`
}

// Actor identifies who is performing an operation. The core holds no session
// state; callers pass the acting user into every operation that needs
// authorization context.
type Actor struct {
	ID   int64
	Role Role
}

// IsAdmin reports whether the actor holds the administrator role.
func (a Actor) IsAdmin() bool { return a.Role == RoleAdministrator }
