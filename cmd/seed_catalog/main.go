package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/im-amal-raj/LibTrack/libtrack"
)

// Seeds the catalog with sample books so the menu has something to circulate.
func main() {
	cfg, err := libtrack.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	lib, err := libtrack.Open(cfg, zerolog.Nop())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening database: %v\n", err)
		os.Exit(1)
	}
	defer lib.Close()

	// (Title, Author, Copies)
	catalog := []struct {
		title  string
		author string
		copies int
	}{
		{"The Great Gatsby", "F. Scott Fitzgerald", 5},
		{"To Kill a Mockingbird", "Harper Lee", 3},
		{"1984", "George Orwell", 10},
		{"Pride and Prejudice", "Jane Austen", 4},
		{"The Catcher in the Rye", "J.D. Salinger", 6},
		{"The Hobbit", "J.R.R. Tolkien", 8},
		{"Fahrenheit 451", "Ray Bradbury", 5},
		{"Moby Dick", "Herman Melville", 2},
		{"War and Peace", "Leo Tolstoy", 3},
		{"The Odyssey", "Homer", 4},
		{"Hamlet", "William Shakespeare", 7},
		{"The Divine Comedy", "Dante Alighieri", 2},
		{"Crime and Punishment", "Fyodor Dostoevsky", 4},
		{"The Brothers Karamazov", "Fyodor Dostoevsky", 3},
		{"Brave New World", "Aldous Huxley", 6},
	}

	seeder := libtrack.Actor{Role: libtrack.RoleAdministrator}

	fmt.Printf("Seeding catalog into %s...\n", cfg.DBPath)
	successCount := 0
	errorCount := 0

	for _, entry := range catalog {
		fmt.Printf("Adding: %s by %s (Qty: %d)... ", entry.title, entry.author, entry.copies)
		book, err := lib.Books.AddBook(seeder, entry.title, entry.author, entry.copies)
		if err != nil {
			fmt.Printf("ERROR - %v\n", err)
			errorCount++
			continue
		}
		fmt.Printf("SUCCESS (ID: %d)\n", book.ID)
		successCount++
	}

	fmt.Printf("\nSeeding complete!\n")
	fmt.Printf("Successfully added: %d books\n", successCount)
	fmt.Printf("Errors: %d\n", errorCount)

	if successCount > 0 {
		books, err := lib.Books.ListBooks()
		if err != nil {
			fmt.Printf("Error retrieving books: %v\n", err)
			return
		}
		fmt.Printf("\n%-3s %-40s %-25s %-6s\n", "ID", "Title", "Author", "Copies")
		fmt.Println(strings.Repeat("-", 80))
		for _, book := range books {
			fmt.Printf("%-3d %-40s %-25s %-6d\n", book.ID, book.Title, book.Author, book.TotalCopies)
		}
	}
}
