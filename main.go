package main

import (
	"bufio"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/im-amal-raj/LibTrack/libtrack"
)

func main() {
	root := &cobra.Command{
		Use:   "libtrack",
		Short: "Library circulation tracker",
		Long:  "LibTrack manages a book catalog, a user directory, and the loan lifecycle through an interactive text menu.",
		RunE: func(cmd *cobra.Command, args []string) error {
			lib, err := openLibrary()
			if err != nil {
				return err
			}
			defer lib.Close()
			return runMenu(lib)
		},
		SilenceUsage: true,
	}

	root.AddCommand(&cobra.Command{
		Use:   "create-admin",
		Short: "Bootstrap the first administrator account",
		RunE: func(cmd *cobra.Command, args []string) error {
			lib, err := openLibrary()
			if err != nil {
				return err
			}
			defer lib.Close()
			return createAdmin(lib)
		},
	})

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func openLibrary() (*libtrack.Library, error) {
	cfg, err := libtrack.LoadConfig()
	if err != nil {
		return nil, err
	}

	lib, err := libtrack.Open(cfg, newLogger(cfg))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return lib, nil
}

func newLogger(cfg libtrack.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	if cfg.LogFormat == "json" {
		return zerolog.New(os.Stderr).With().Timestamp().Logger().Level(level)
	}
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}
	return zerolog.New(out).With().Timestamp().Logger().Level(level)
}

// createAdmin seeds the very first administrator so the menu has someone who
// can log in. Registration from the menu always creates borrowers.
func createAdmin(lib *libtrack.Library) error {
	sc := bufio.NewScanner(os.Stdin)
	fmt.Println("Creating Admin Account...")

	s := &session{sc: sc, lib: lib}
	form, ok := s.promptUserForm()
	if !ok {
		return fmt.Errorf("aborted")
	}

	// Bootstrap path: no acting administrator exists yet.
	user, err := lib.Users.Create(libtrack.Actor{Role: libtrack.RoleAdministrator}, libtrack.NewUser{
		Name: form.Name, Username: form.Username, Phone: form.Phone,
		Password: form.Password, Role: libtrack.RoleAdministrator,
	})
	if err != nil {
		return err
	}
	fmt.Printf("Administrator %q created (ID %d). Run libtrack to log in.\n", user.Username, user.ID)
	return nil
}
