package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"crowdwatch/internal/config"
	"crowdwatch/internal/logger"
	"crowdwatch/internal/model"
	"crowdwatch/internal/repository/sqlite"
	"crowdwatch/internal/service/users"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Manage dashboard accounts",
	Long:  `Create, list, promote, demote and delete dashboard accounts.`,
}

// openUsers opens the configured database. The returned func releases it.
func openUsers() (*users.Service, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	log, err := logger.New(cfg.LogDirectory, cfg.LogLevel, io.Discard, os.Stderr)
	if err != nil {
		return nil, nil, err
	}
	db, err := sqlite.New(cfg.DatabasePath, log)
	if err != nil {
		log.Close()
		return nil, nil, err
	}
	svc := users.NewService(sqlite.NewUserRepository(db), log, true)
	return svc, func() {
		db.Close()
		log.Close()
	}, nil
}

func readPassword() (string, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return "", errors.New("--password is required when stdin is not a terminal")
	}
	fmt.Fprint(os.Stderr, "Password: ")
	bytePassword, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(bytePassword), nil
}

var usersCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an account",
	Long: `Create an account. Without --password the password is prompted for.

Example:
  crowdwatch users create --name Admin --email admin@example.com --admin`,
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("name")
		email, _ := cmd.Flags().GetString("email")
		password, _ := cmd.Flags().GetString("password")
		admin, _ := cmd.Flags().GetBool("admin")

		if password == "" {
			var err error
			if password, err = readPassword(); err != nil {
				return err
			}
		}

		role := model.RoleUser
		if admin {
			role = model.RoleAdmin
		}

		svc, done, err := openUsers()
		if err != nil {
			return err
		}
		defer done()

		user, err := svc.CreateUser(cmd.Context(), name, email, password, role)
		if err != nil {
			return err
		}
		fmt.Printf("Created %s account %s (id %d)\n", user.Role, user.Email, user.ID)
		return nil
	},
}

var usersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List accounts",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, done, err := openUsers()
		if err != nil {
			return err
		}
		defer done()

		list, err := svc.List(cmd.Context())
		if err != nil {
			return err
		}
		if len(list) == 0 {
			fmt.Println("No accounts found.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tEMAIL\tROLE\tCREATED")
		for _, u := range list {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", u.ID, u.Name, u.Email, u.Role, u.CreatedAt.Format("2006-01-02"))
		}
		return w.Flush()
	},
}

type accountAction func(svc *users.Service, ctx context.Context, email string) error

// accountCommand builds the commands that act on a single email.
func accountCommand(use, short, done string, action accountAction) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <email>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, closeDB, err := openUsers()
			if err != nil {
				return err
			}
			defer closeDB()

			if err := action(svc, cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Printf("%s %s\n", done, args[0])
			return nil
		},
	}
}

func init() {
	rootCmd.AddCommand(usersCmd)

	usersCreateCmd.Flags().String("name", "", "Display name")
	usersCreateCmd.Flags().String("email", "", "Login email")
	usersCreateCmd.Flags().String("password", "", "Password (prompted when omitted)")
	usersCreateCmd.Flags().Bool("admin", false, "Create an admin account")
	usersCreateCmd.MarkFlagRequired("name")
	usersCreateCmd.MarkFlagRequired("email")

	usersCmd.AddCommand(
		usersCreateCmd,
		usersListCmd,
		accountCommand("promote", "Give an account the admin role", "Promoted", (*users.Service).Promote),
		accountCommand("demote", "Take the admin role away", "Demoted", (*users.Service).Demote),
		accountCommand("delete", "Delete an account", "Deleted", (*users.Service).Delete),
	)
}
