package libtrack

import (
	"database/sql"
	"errors"
	"strings"

	"github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

// Directory owns user records. Passwords are bcrypt-hashed on the way in and
// never leave as anything but an opaque hash.
type Directory struct {
	db  *Database
	log zerolog.Logger
}

// NewDirectory wraps the database with user-directory operations.
func NewDirectory(db *Database, log zerolog.Logger) *Directory {
	return &Directory{db: db, log: log.With().Str("component", "directory").Logger()}
}

// NewUser carries the fields for creating a directory entry. The presentation
// layer validates formats (username length, phone digits) before calling in.
type NewUser struct {
	Name     string
	Username string
	Phone    string
	Password string
	Role     Role
}

// Register is the self-service path: the new account is always a borrower.
func (dir *Directory) Register(in NewUser) (*User, error) {
	in.Role = RoleBorrower
	return dir.create(in)
}

// Create is the administrative path and may set either role.
func (dir *Directory) Create(actor Actor, in NewUser) (*User, error) {
	if !actor.IsAdmin() {
		return nil, ErrNotAuthorized
	}
	if !in.Role.Valid() {
		in.Role = RoleBorrower
	}
	return dir.create(in)
}

func (dir *Directory) create(in NewUser) (*User, error) {
	username := normalizeUsername(in.Username)
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, storageErr("hash password", err)
	}

	res, err := dir.db.addUserStmt.Exec(in.Name, username, in.Phone, string(hash), string(in.Role))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateUsername
		}
		return nil, storageErr("create user", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, storageErr("create user", err)
	}

	dir.log.Info().Int64("user_id", id).Str("username", username).Str("role", string(in.Role)).Msg("user created")
	return &User{ID: id, Name: in.Name, Username: username, Phone: in.Phone, PasswordHash: string(hash), Role: in.Role}, nil
}

// Authenticate verifies credentials and returns the matching user. Unknown
// usernames and wrong passwords are indistinguishable to the caller.
func (dir *Directory) Authenticate(username, password string) (*User, error) {
	user, err := dir.FindByUsername(username)
	if errors.Is(err, ErrUserNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// FindByUsername looks a user up case-insensitively.
func (dir *Directory) FindByUsername(username string) (*User, error) {
	return getUserBy(dir.db.db, `username=?`, normalizeUsername(username))
}

// FindByID fetches a single user.
func (dir *Directory) FindByID(id int64) (*User, error) {
	return getUserBy(dir.db.db, `id=?`, id)
}

// List returns all users ordered by id.
func (dir *Directory) List(actor Actor) ([]*User, error) {
	if !actor.IsAdmin() {
		return nil, ErrNotAuthorized
	}
	rows, err := dir.db.db.Query(
		`SELECT id,name,username,phone,password_hash,role FROM users ORDER BY id`)
	if err != nil {
		return nil, storageErr("list users", err)
	}
	defer rows.Close()

	var users []*User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Name, &u.Username, &u.Phone, &u.PasswordHash, &u.Role); err != nil {
			return nil, storageErr("list users", err)
		}
		users = append(users, &u)
	}
	return users, rows.Err()
}

// AdminCount reports how many administrators exist.
func (dir *Directory) AdminCount() (int, error) {
	return countAdmins(dir.db.db)
}

// UserUpdate carries replacement values for Update. An empty Password keeps
// the current hash.
type UserUpdate struct {
	Name     string
	Username string
	Phone    string
	Password string
	Role     Role
}

// Update rewrites a user's fields. The last-administrator guard is evaluated
// inside the same transaction as the write.
func (dir *Directory) Update(actor Actor, userID int64, upd UserUpdate) (*User, error) {
	if !actor.IsAdmin() {
		return nil, ErrNotAuthorized
	}
	if !upd.Role.Valid() {
		return nil, ErrInvalidRole
	}

	var updated *User
	err := dir.db.withTx("update user", func(tx *sql.Tx) error {
		current, err := getUserBy(tx, `id=?`, userID)
		if err != nil {
			return err
		}

		if current.Role == RoleAdministrator && upd.Role != RoleAdministrator {
			admins, err := countAdmins(tx)
			if err != nil {
				return err
			}
			if !CanDemote(current.Role, upd.Role, admins) {
				return ErrLastAdminForbidden
			}
		}

		hash := current.PasswordHash
		if upd.Password != "" {
			h, err := bcrypt.GenerateFromPassword([]byte(upd.Password), bcrypt.DefaultCost)
			if err != nil {
				return storageErr("hash password", err)
			}
			hash = string(h)
		}

		username := normalizeUsername(upd.Username)
		_, err = tx.Exec(
			`UPDATE users SET name=?, username=?, phone=?, password_hash=?, role=? WHERE id=?`,
			upd.Name, username, upd.Phone, hash, string(upd.Role), userID)
		if isUniqueViolation(err) {
			return ErrDuplicateUsername
		}
		if err != nil {
			return storageErr("update user", err)
		}

		updated = &User{ID: userID, Name: upd.Name, Username: username, Phone: upd.Phone, PasswordHash: hash, Role: upd.Role}
		dir.log.Info().Int64("user_id", userID).Str("role", string(upd.Role)).Msg("user updated")
		return nil
	})
	return updated, err
}

// Delete removes a user. Guardrails (no self-deletion, last administrator,
// active loans) are re-checked inside the transaction; closed loan history
// and its notifications are cascaded.
func (dir *Directory) Delete(actor Actor, username string) error {
	if !actor.IsAdmin() {
		return ErrNotAuthorized
	}

	return dir.db.withTx("delete user", func(tx *sql.Tx) error {
		target, err := getUserBy(tx, `username=?`, normalizeUsername(username))
		if err != nil {
			return err
		}

		admins, err := countAdmins(tx)
		if err != nil {
			return err
		}
		active, err := countActiveLoansForUser(tx, target.ID)
		if err != nil {
			return err
		}
		if err := CanDeleteUser(target.ID == actor.ID, target.Role, admins, active); err != nil {
			return err
		}

		if _, err := tx.Exec(
			`DELETE FROM notifications WHERE loan_id IN (SELECT id FROM loans WHERE user_id=?)`, target.ID); err != nil {
			return storageErr("delete user", err)
		}
		if _, err := tx.Exec(`DELETE FROM loans WHERE user_id=?`, target.ID); err != nil {
			return storageErr("delete user", err)
		}
		if _, err := tx.Exec(`DELETE FROM users WHERE id=?`, target.ID); err != nil {
			return storageErr("delete user", err)
		}
		dir.log.Info().Int64("user_id", target.ID).Str("username", target.Username).Msg("user deleted")
		return nil
	})
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func normalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}

func getUserBy(q querier, where string, arg any) (*User, error) {
	var u User
	err := q.QueryRow(
		`SELECT id,name,username,phone,password_hash,role FROM users WHERE `+where, arg).
		Scan(&u.ID, &u.Name, &u.Username, &u.Phone, &u.PasswordHash, &u.Role)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, storageErr("get user", err)
	}
	return &u, nil
}

func countAdmins(q querier) (int, error) {
	var n int
	if err := q.QueryRow(`SELECT COUNT(*) FROM users WHERE role=?`, string(RoleAdministrator)).Scan(&n); err != nil {
		return 0, storageErr("count admins", err)
	}
	return n, nil
}

func countActiveLoansForUser(q querier, userID int64) (int, error) {
	var n int
	if err := q.QueryRow(
		`SELECT COUNT(*) FROM loans WHERE user_id=? AND return_date IS NULL`, userID).Scan(&n); err != nil {
		return 0, storageErr("count active loans", err)
	}
	return n, nil
}
