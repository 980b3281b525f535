package main

import (
	"bufio"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"syscall"

	"github.com/go-playground/validator/v10"
	"golang.org/x/term"
)

var validate = validator.New()

// registerForm is validated before any scalar reaches the core: the core
// expects non-empty strings, parsed integers, and dates in a fixed format.
type registerForm struct {
	Name     string `validate:"required"`
	Username string `validate:"required,alphanum,min=3"`
	Phone    string `validate:"required,numeric,len=10"`
	Password string `validate:"required"`
}

func (f registerForm) check() error {
	err := validate.Struct(f)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		switch verrs[0].Field() {
		case "Username":
			return fmt.Errorf("username must be at least 3 characters, letters and numbers only")
		case "Phone":
			return fmt.Errorf("phone must be exactly 10 digits")
		default:
			return fmt.Errorf("%s cannot be empty", strings.ToLower(verrs[0].Field()))
		}
	}
	return err
}

// promptString keeps asking until a non-empty line is entered.
func promptString(sc *bufio.Scanner, prompt string) (string, bool) {
	for {
		fmt.Print(prompt)
		if !sc.Scan() {
			return "", false
		}
		value := strings.TrimSpace(sc.Text())
		if value != "" {
			return value, true
		}
		fmt.Println("Input cannot be empty.")
	}
}

// promptOptional reads a line that may be empty (keep-current semantics).
func promptOptional(sc *bufio.Scanner, prompt string) (string, bool) {
	fmt.Print(prompt)
	if !sc.Scan() {
		return "", false
	}
	return strings.TrimSpace(sc.Text()), true
}

// promptInt keeps asking until a valid integer is entered.
func promptInt(sc *bufio.Scanner, prompt string) (int, bool) {
	for {
		value, ok := promptString(sc, prompt)
		if !ok {
			return 0, false
		}
		n, err := strconv.Atoi(value)
		if err != nil {
			fmt.Println("Please enter a valid number.")
			continue
		}
		return n, true
	}
}

// promptID keeps asking until a valid id is entered.
func promptID(sc *bufio.Scanner, prompt string) (int64, bool) {
	for {
		value, ok := promptString(sc, prompt)
		if !ok {
			return 0, false
		}
		id, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			fmt.Println("Please enter a valid numeric ID.")
			continue
		}
		return id, true
	}
}

// promptChoice restricts input to one of the given options.
func promptChoice(sc *bufio.Scanner, prompt string, options ...string) (string, bool) {
	for {
		value, ok := promptString(sc, prompt)
		if !ok {
			return "", false
		}
		value = strings.ToLower(value)
		for _, opt := range options {
			if value == opt {
				return value, true
			}
		}
		fmt.Printf("Invalid choice. Pick one of %v.\n", options)
	}
}

// confirmYes asks a yes/no question.
func confirmYes(sc *bufio.Scanner, prompt string) bool {
	value, ok := promptChoice(sc, prompt+" (yes/no): ", "yes", "no", "y", "n")
	return ok && (value == "yes" || value == "y")
}

// readPassword securely reads a password with masking.
func readPassword(prompt string) (string, error) {
	fmt.Print(prompt)
	bytePassword, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		return "", err
	}
	fmt.Println() // Add newline after password input
	return strings.TrimSpace(string(bytePassword)), nil
}

func clearScreen() {
	fmt.Print("\033[2J\033[H")
}

func pause(sc *bufio.Scanner) {
	fmt.Print("\nPress Enter to continue...")
	sc.Scan()
}

func truncateString(s string, maxLength int) string {
	if len(s) <= maxLength {
		return s
	}
	return s[:maxLength-3] + "..."
}
