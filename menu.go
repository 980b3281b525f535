package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/im-amal-raj/LibTrack/libtrack"
)

// session tracks who is logged in at the terminal. The core is stateless;
// every operation receives the acting user explicitly.
type session struct {
	sc      *bufio.Scanner
	lib     *libtrack.Library
	current *libtrack.User
}

func runMenu(lib *libtrack.Library) error {
	s := &session{sc: bufio.NewScanner(os.Stdin), lib: lib}

	for {
		clearScreen()
		switch {
		case s.current == nil:
			if done := s.loginScreen(); done {
				return nil
			}
		case s.current.Role == libtrack.RoleAdministrator:
			s.adminMenu()
		default:
			s.borrowerMenu()
		}
	}
}

func (s *session) actor() libtrack.Actor {
	return s.current.AsActor()
}

// ---------------------------------------------------------------------------
// Login screen
// ---------------------------------------------------------------------------

func (s *session) loginScreen() (exit bool) {
	fmt.Println("\n=== LIBTRACK SYSTEM ===")
	fmt.Println("1. Login")
	fmt.Println("2. Register (Borrower)")
	fmt.Println("3. Exit")

	choice, ok := promptChoice(s.sc, "Choice: ", "1", "2", "3")
	if !ok {
		return true
	}
	switch choice {
	case "1":
		s.handleLogin()
	case "2":
		s.handleRegister()
	case "3":
		return true
	}
	return false
}

func (s *session) handleLogin() {
	username, ok := promptString(s.sc, "Username: ")
	if !ok {
		return
	}
	password, err := readPassword("Password: ")
	if err != nil {
		fmt.Printf("Error reading password: %v\n", err)
		pause(s.sc)
		return
	}

	user, err := s.lib.Users.Authenticate(username, password)
	if err != nil {
		fmt.Printf("Login failed: %v\n", err)
		pause(s.sc)
		return
	}
	s.current = user
	fmt.Printf("Logged in as %s\n", user.Name)
}

func (s *session) handleRegister() {
	form, ok := s.promptUserForm()
	if !ok {
		return
	}

	user, err := s.lib.Users.Register(libtrack.NewUser{
		Name: form.Name, Username: form.Username, Phone: form.Phone, Password: form.Password,
	})
	if err != nil {
		fmt.Printf("Registration failed: %v\n", err)
	} else {
		fmt.Printf("User %s registered successfully (ID %d).\n", user.Name, user.ID)
	}
	pause(s.sc)
}

func (s *session) promptUserForm() (registerForm, bool) {
	for {
		var form registerForm
		var ok bool
		if form.Name, ok = promptString(s.sc, "Name: "); !ok {
			return form, false
		}
		if form.Username, ok = promptString(s.sc, "Username: "); !ok {
			return form, false
		}
		if form.Phone, ok = promptString(s.sc, "Phone: "); !ok {
			return form, false
		}
		password, err := readPassword("Password: ")
		if err != nil {
			fmt.Printf("Error reading password: %v\n", err)
			return form, false
		}
		form.Password = password

		if err := form.check(); err != nil {
			fmt.Printf("Invalid input: %v\n", err)
			continue
		}
		return form, true
	}
}

// ---------------------------------------------------------------------------
// Admin menu
// ---------------------------------------------------------------------------

func (s *session) adminMenu() {
	// Materialize due-today alerts before rendering the inbox badge.
	if _, err := s.lib.Inbox.SweepDueToday(); err != nil {
		fmt.Printf("Warning: alert sweep failed: %v\n", err)
	}

	badge := ""
	if unread, err := s.lib.Inbox.UnreadCount(); err == nil && unread > 0 {
		badge = fmt.Sprintf(" (%d NEW)", unread)
	}

	fmt.Printf("\n=== ADMIN MENU (%s)%s ===\n", s.current.Name, badge)
	fmt.Println("1. Manage Books")
	fmt.Println("2. Manage Users")
	fmt.Println("3. Issue Book")
	fmt.Println("4. Return Book")
	fmt.Println("5. View All Loans")
	fmt.Println("6. Delete Loan Record")
	fmt.Println("7. Manual Loan Update")
	fmt.Printf("8. Notifications%s\n", badge)
	fmt.Println("9. Search Books")
	fmt.Println("0. Logout")

	choice, ok := promptChoice(s.sc, "\nChoice: ", "1", "2", "3", "4", "5", "6", "7", "8", "9", "0")
	if !ok {
		s.current = nil
		return
	}
	switch choice {
	case "1":
		s.manageBooksMenu()
	case "2":
		s.manageUsersMenu()
	case "3":
		s.handleIssue()
	case "4":
		s.handleReturn()
	case "5":
		s.handleAllLoans()
	case "6":
		s.handleDeleteLoan()
	case "7":
		s.handleUpdateLoan()
	case "8":
		s.handleNotifications()
	case "9":
		s.handleSearchBooks()
	case "0":
		s.current = nil
	}
}

func (s *session) borrowerMenu() {
	fmt.Printf("\n=== BORROWER MENU (%s) ===\n", s.current.Name)
	fmt.Println("1. View All Books")
	fmt.Println("2. Search Books")
	fmt.Println("3. My Borrowed Books")
	fmt.Println("0. Logout")

	choice, ok := promptChoice(s.sc, "\nChoice: ", "1", "2", "3", "0")
	if !ok {
		s.current = nil
		return
	}
	switch choice {
	case "1":
		s.handleListBooks()
	case "2":
		s.handleSearchBooks()
	case "3":
		s.handleMyLoans()
	case "0":
		s.current = nil
	}
}

// ---------------------------------------------------------------------------
// Book management
// ---------------------------------------------------------------------------

func (s *session) manageBooksMenu() {
	for {
		clearScreen()
		fmt.Println("--- MANAGE BOOKS ---")
		fmt.Println("1. Add Book")
		fmt.Println("2. Update Book Details")
		fmt.Println("3. Adjust Stock")
		fmt.Println("4. Remove Book")
		fmt.Println("5. List All Books")
		fmt.Println("0. Back")

		choice, ok := promptChoice(s.sc, "Choice: ", "1", "2", "3", "4", "5", "0")
		if !ok || choice == "0" {
			return
		}
		switch choice {
		case "1":
			s.handleAddBook()
		case "2":
			s.handleUpdateBook()
		case "3":
			s.handleAdjustStock()
		case "4":
			s.handleDeleteBook()
		case "5":
			s.handleListBooks()
		}
	}
}

func (s *session) handleAddBook() {
	title, ok := promptString(s.sc, "Title: ")
	if !ok {
		return
	}
	author, ok := promptString(s.sc, "Author: ")
	if !ok {
		return
	}
	quantity, ok := promptInt(s.sc, "Number of copies: ")
	if !ok {
		return
	}

	book, err := s.lib.Books.AddBook(s.actor(), title, author, quantity)
	if err != nil {
		fmt.Printf("Error adding book: %v\n", err)
	} else {
		fmt.Printf("Added book ID %d with %d copies.\n", book.ID, book.TotalCopies)
	}
	pause(s.sc)
}

func (s *session) handleUpdateBook() {
	bookID, ok := promptID(s.sc, "Book ID: ")
	if !ok {
		return
	}
	book, err := s.lib.Books.GetBook(bookID)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		pause(s.sc)
		return
	}

	fmt.Println("(Press Enter to keep current value)")
	title, ok := promptOptional(s.sc, fmt.Sprintf("New Title [%s]: ", book.Title))
	if !ok {
		return
	}
	if title == "" {
		title = book.Title
	}
	author, ok := promptOptional(s.sc, fmt.Sprintf("New Author [%s]: ", book.Author))
	if !ok {
		return
	}
	if author == "" {
		author = book.Author
	}

	if err := s.lib.Books.UpdateBook(s.actor(), bookID, title, author); err != nil {
		fmt.Printf("Error updating book: %v\n", err)
	} else {
		fmt.Println("Book updated.")
	}
	pause(s.sc)
}

func (s *session) handleAdjustStock() {
	bookID, ok := promptID(s.sc, "Book ID: ")
	if !ok {
		return
	}
	book, err := s.lib.Books.GetBook(bookID)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		pause(s.sc)
		return
	}

	fmt.Printf("Current stock: %d available / %d total (%d issued)\n",
		book.AvailableCopies, book.TotalCopies, book.IssuedCopies())
	newTotal, ok := promptInt(s.sc, "New total copies: ")
	if !ok {
		return
	}

	if err := s.lib.Books.AdjustStock(s.actor(), bookID, newTotal); err != nil {
		fmt.Printf("Error adjusting stock: %v\n", err)
	} else {
		fmt.Println("Stock adjusted.")
	}
	pause(s.sc)
}

func (s *session) handleDeleteBook() {
	bookID, ok := promptID(s.sc, "Book ID to delete: ")
	if !ok {
		return
	}

	_, err := s.lib.Books.DeleteBook(s.actor(), bookID, false)
	if errors.Is(err, libtrack.ErrConfirmationNeeded) {
		fmt.Printf("%v\n", err)
		if !confirmYes(s.sc, "Erase the book and its entire loan history?") {
			fmt.Println("Deletion cancelled.")
			pause(s.sc)
			return
		}
		_, err = s.lib.Books.DeleteBook(s.actor(), bookID, true)
	}
	if err != nil {
		fmt.Printf("Error deleting book: %v\n", err)
	} else {
		fmt.Println("Book deleted successfully.")
	}
	pause(s.sc)
}

func (s *session) handleListBooks() {
	books, err := s.lib.Books.ListBooks()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		pause(s.sc)
		return
	}
	printBookTable(books)
	pause(s.sc)
}

func (s *session) handleSearchBooks() {
	keyword, ok := promptString(s.sc, "Enter keyword: ")
	if !ok {
		return
	}
	books, err := s.lib.Books.SearchBooks(keyword)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		pause(s.sc)
		return
	}
	if len(books) == 0 {
		fmt.Printf("No books found matching %q.\n", keyword)
	} else {
		printBookTable(books)
	}
	pause(s.sc)
}

func printBookTable(books []*libtrack.Book) {
	if len(books) == 0 {
		fmt.Println("No books in library.")
		return
	}
	fmt.Printf("%-5s %-35s %-25s %-10s %-10s\n", "ID", "Title", "Author", "Available", "Total")
	fmt.Println(strings.Repeat("-", 90))
	for _, b := range books {
		fmt.Printf("%-5d %-35s %-25s %-10d %-10d\n",
			b.ID, truncateString(b.Title, 35), truncateString(b.Author, 25),
			b.AvailableCopies, b.TotalCopies)
	}
}

// ---------------------------------------------------------------------------
// User management
// ---------------------------------------------------------------------------

func (s *session) manageUsersMenu() {
	for {
		clearScreen()
		fmt.Println("--- MANAGE USERS ---")
		fmt.Println("1. Add User")
		fmt.Println("2. List Users")
		fmt.Println("3. Update User")
		fmt.Println("4. Delete User")
		fmt.Println("0. Back")

		choice, ok := promptChoice(s.sc, "Choice: ", "1", "2", "3", "4", "0")
		if !ok || choice == "0" {
			return
		}
		switch choice {
		case "1":
			s.handleAddUser()
		case "2":
			s.handleListUsers()
		case "3":
			s.handleUpdateUser()
		case "4":
			s.handleDeleteUser()
		}
		if s.current == nil {
			return
		}
	}
}

func (s *session) handleAddUser() {
	form, ok := s.promptUserForm()
	if !ok {
		return
	}
	role, ok := promptChoice(s.sc, "Role (administrator/borrower): ", "administrator", "borrower")
	if !ok {
		return
	}

	user, err := s.lib.Users.Create(s.actor(), libtrack.NewUser{
		Name: form.Name, Username: form.Username, Phone: form.Phone,
		Password: form.Password, Role: libtrack.Role(role),
	})
	if err != nil {
		fmt.Printf("Error creating user: %v\n", err)
	} else {
		fmt.Printf("Added %s %q with ID %d.\n", user.Role, user.Name, user.ID)
	}
	pause(s.sc)
}

func (s *session) handleListUsers() {
	users, err := s.lib.Users.List(s.actor())
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		pause(s.sc)
		return
	}
	fmt.Printf("%-5s %-25s %-20s %-12s %-15s\n", "ID", "Name", "Username", "Phone", "Role")
	fmt.Println(strings.Repeat("-", 80))
	for _, u := range users {
		fmt.Printf("%-5d %-25s %-20s %-12s %-15s\n",
			u.ID, truncateString(u.Name, 25), u.Username, u.Phone, u.Role)
	}
	pause(s.sc)
}

func (s *session) handleUpdateUser() {
	username, ok := promptString(s.sc, "Username to update: ")
	if !ok {
		return
	}
	user, err := s.lib.Users.FindByUsername(username)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		pause(s.sc)
		return
	}

	fmt.Printf("\nUpdating: %s (%s)\n", user.Name, user.Role)
	fmt.Println("(Press Enter to keep current value)")

	upd := libtrack.UserUpdate{Name: user.Name, Username: user.Username, Phone: user.Phone, Role: user.Role}
	if v, ok := promptOptional(s.sc, fmt.Sprintf("New Name [%s]: ", user.Name)); !ok {
		return
	} else if v != "" {
		upd.Name = v
	}
	if v, ok := promptOptional(s.sc, fmt.Sprintf("New Username [%s]: ", user.Username)); !ok {
		return
	} else if v != "" {
		upd.Username = v
	}
	if v, ok := promptOptional(s.sc, fmt.Sprintf("New Phone [%s]: ", user.Phone)); !ok {
		return
	} else if v != "" {
		upd.Phone = v
	}
	password, err := readPassword("New Password (Enter to keep): ")
	if err == nil && password != "" {
		upd.Password = password
	}
	if v, ok := promptOptional(s.sc, fmt.Sprintf("New Role (administrator/borrower) [%s]: ", user.Role)); !ok {
		return
	} else if v != "" {
		role := libtrack.Role(strings.ToLower(v))
		if !role.Valid() {
			fmt.Println("Invalid role. Keeping old role.")
		} else {
			upd.Role = role
		}
	}

	updated, err := s.lib.Users.Update(s.actor(), user.ID, upd)
	if err != nil {
		fmt.Printf("Error updating user: %v\n", err)
		pause(s.sc)
		return
	}
	fmt.Println("User updated successfully.")

	// Demoting your own account ends the admin session.
	if updated.ID == s.current.ID && updated.Role != libtrack.RoleAdministrator {
		fmt.Println("You have downgraded your own account and will be logged out.")
		s.current = nil
	}
	pause(s.sc)
}

func (s *session) handleDeleteUser() {
	username, ok := promptString(s.sc, "Username to delete: ")
	if !ok {
		return
	}
	if !confirmYes(s.sc, fmt.Sprintf("Are you sure you want to delete %q?", username)) {
		fmt.Println("Operation cancelled.")
		pause(s.sc)
		return
	}

	if err := s.lib.Users.Delete(s.actor(), username); err != nil {
		fmt.Printf("Error deleting user: %v\n", err)
	} else {
		fmt.Println("User deleted successfully.")
	}
	pause(s.sc)
}

// ---------------------------------------------------------------------------
// Circulation
// ---------------------------------------------------------------------------

func (s *session) handleIssue() {
	bookID, ok := promptID(s.sc, "Book ID: ")
	if !ok {
		return
	}
	userID, ok := promptID(s.sc, "User ID: ")
	if !ok {
		return
	}

	loan, err := s.lib.Loans.Issue(s.actor(), bookID, userID)
	if err != nil {
		fmt.Printf("Error issuing book: %v\n", err)
	} else {
		fmt.Printf("Book issued. Due: %s\n", loan.DueDate.Format("2006-01-02"))
	}
	pause(s.sc)
}

func (s *session) handleReturn() {
	bookID, ok := promptID(s.sc, "Book ID to return: ")
	if !ok {
		return
	}

	receipt, err := s.lib.Loans.Return(s.actor(), bookID)
	if err != nil {
		fmt.Printf("Error returning book: %v\n", err)
		pause(s.sc)
		return
	}

	fmt.Printf("Book %q returned by %s.\n", receipt.BookTitle, receipt.UserName)
	if receipt.DaysOverdue > 0 {
		fmt.Printf("OVERDUE by %d days. Fine: $%s\n", receipt.DaysOverdue, receipt.Fine.StringFixed(2))
	} else {
		fmt.Println("Returned on time.")
	}
	pause(s.sc)
}

func (s *session) handleAllLoans() {
	records, err := s.lib.Loans.ListLoans(s.actor())
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		pause(s.sc)
		return
	}
	printLoanTable(records, true)
	pause(s.sc)
}

func (s *session) handleMyLoans() {
	records, err := s.lib.Loans.ListLoansForUser(s.actor(), s.current.ID)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		pause(s.sc)
		return
	}
	printLoanTable(records, false)
	pause(s.sc)
}

func printLoanTable(records []*libtrack.LoanRecord, withUser bool) {
	if len(records) == 0 {
		fmt.Println("No loan records found.")
		return
	}
	if withUser {
		fmt.Printf("%-5s %-30s %-20s %-12s %-12s %-12s\n", "ID", "Book Title", "Borrower", "Issued", "Due", "Returned")
	} else {
		fmt.Printf("%-5s %-30s %-25s %-12s %-12s %-12s\n", "ID", "Title", "Author", "Borrowed", "Due", "Returned")
	}
	fmt.Println(strings.Repeat("-", 100))
	for _, r := range records {
		returned := "active"
		if r.ReturnDate != nil {
			returned = r.ReturnDate.Format("2006-01-02")
		}
		if withUser {
			fmt.Printf("%-5d %-30s %-20s %-12s %-12s %-12s\n",
				r.LoanID, truncateString(r.BookTitle, 30), truncateString(r.UserName, 20),
				r.IssueDate.Format("2006-01-02"), r.DueDate.Format("2006-01-02"), returned)
		} else {
			fmt.Printf("%-5d %-30s %-25s %-12s %-12s %-12s\n",
				r.LoanID, truncateString(r.BookTitle, 30), truncateString(r.BookAuthor, 25),
				r.IssueDate.Format("2006-01-02"), r.DueDate.Format("2006-01-02"), returned)
		}
	}
}

func (s *session) handleDeleteLoan() {
	loanID, ok := promptID(s.sc, "Loan ID to delete: ")
	if !ok {
		return
	}

	err := s.lib.Loans.DeleteLoan(s.actor(), loanID, false)
	if errors.Is(err, libtrack.ErrConfirmationNeeded) {
		fmt.Println("WARNING: This is an ACTIVE loan. Deleting it restores one available copy.")
		if !confirmYes(s.sc, "Proceed?") {
			fmt.Println("Operation cancelled.")
			pause(s.sc)
			return
		}
		err = s.lib.Loans.DeleteLoan(s.actor(), loanID, true)
	}
	if err != nil {
		fmt.Printf("Error deleting loan: %v\n", err)
	} else {
		fmt.Println("Loan deleted.")
	}
	pause(s.sc)
}

func (s *session) handleUpdateLoan() {
	loanID, ok := promptID(s.sc, "Loan ID to update: ")
	if !ok {
		return
	}
	loan, err := s.lib.Loans.GetLoan(s.actor(), loanID)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		pause(s.sc)
		return
	}

	currentReturn := "Active/Empty"
	if loan.ReturnDate != nil {
		currentReturn = loan.ReturnDate.Format("2006-01-02")
	}
	fmt.Printf("\nUpdating Loan #%d\n", loanID)
	fmt.Println("(Press Enter to keep current values)")

	newDue, ok := promptOptional(s.sc, fmt.Sprintf("New Due Date (YYYY-MM-DD) [%s]: ", loan.DueDate.Format("2006-01-02")))
	if !ok {
		return
	}
	newReturn, ok := promptOptional(s.sc,
		fmt.Sprintf("New Return Date (YYYY-MM-DD, or 'clear' to reopen) [%s]: ", currentReturn))
	if !ok {
		return
	}

	if _, err := s.lib.Loans.UpdateLoan(s.actor(), loanID, newDue, strings.ToLower(newReturn)); err != nil {
		fmt.Printf("Error updating loan: %v\n", err)
	} else {
		fmt.Println("Loan updated successfully.")
	}
	pause(s.sc)
}

// ---------------------------------------------------------------------------
// Notifications
// ---------------------------------------------------------------------------

func (s *session) handleNotifications() {
	notes, err := s.lib.Inbox.ListOpen()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		pause(s.sc)
		return
	}

	fmt.Println("\n=== NOTIFICATION CENTER ===")
	if len(notes) == 0 {
		fmt.Println("Inbox is empty.")
		pause(s.sc)
		return
	}

	fmt.Printf("%-5s %-12s %-8s %s\n", "ID", "Date", "Status", "Message")
	fmt.Println(strings.Repeat("-", 90))
	for _, n := range notes {
		fmt.Printf("%-5d %-12s %-8s %s\n", n.ID, n.CreatedAt.Format("2006-01-02"), n.Status, n.Message)
	}

	if confirmYes(s.sc, "Mark all as read?") {
		if err := s.lib.Inbox.MarkAllRead(); err != nil {
			fmt.Printf("Error: %v\n", err)
		} else {
			fmt.Println("Notifications marked as read.")
		}
	} else {
		fmt.Println("Alerts kept in inbox.")
	}
	pause(s.sc)
}
