package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"parkgate/internal/adapter/memory"
	"parkgate/internal/app"
	"parkgate/internal/config"
	"parkgate/internal/domain"
)

var userRole string

var hashPasswordCmd = &cobra.Command{
	Use:   "hash-password",
	Short: "Print a bcrypt hash of a password read from stdin",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		secret, err := readSecret(cmd, "Password: ")
		if err != nil {
			return err
		}
		hash, err := app.HashPassword(secret)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), hash)
		return nil
	},
}

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Manage accounts",
}

var usersAddCmd = &cobra.Command{
	Use:   "add <username>",
	Short: "Create an account; bots get a shared key, other roles a password",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		role, err := domain.ParseRole(userRole)
		if err != nil {
			return err
		}
		st, err := loadStores()
		if err != nil {
			return err
		}
		defer func() { _ = st.close() }()

		prompt := "Password: "
		if role == domain.RoleBot {
			prompt = "Shared key: "
		}
		secret, err := readSecret(cmd, prompt)
		if err != nil {
			return err
		}

		authSvc := app.NewAuthService(st.users, memory.NewSessionRepo())
		if err := authSvc.CreateUser(cmd.Context(), args[0], role, secret); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "created %s (%s)\n", args[0], role)
		return nil
	},
}

var usersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List accounts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := loadStores()
		if err != nil {
			return err
		}
		defer func() { _ = st.close() }()

		users, err := st.users.List(cmd.Context())
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "USERNAME\tROLE")
		for _, u := range users {
			fmt.Fprintf(w, "%s\t%s\n", u.Username, u.Role)
		}
		return w.Flush()
	},
}

func init() {
	usersAddCmd.Flags().StringVar(&userRole, "role", string(domain.RoleUser), "account role (admin, user or bot)")
	usersCmd.AddCommand(usersAddCmd, usersListCmd)
	rootCmd.AddCommand(usersCmd, hashPasswordCmd)
}

func loadStores() (*stores, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if cfg.Storage.Driver == config.DriverMemory {
		return nil, fmt.Errorf("storage.driver %q keeps no accounts between runs", cfg.Storage.Driver)
	}
	return openStores(cfg.Storage, setupLogger(cfg.Logging))
}

// readSecret prompts without echo on a terminal and reads one line otherwise.
func readSecret(cmd *cobra.Command, prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		fmt.Fprint(cmd.ErrOrStderr(), prompt)
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", fmt.Errorf("reading secret: %w", err)
		}
		return string(b), nil
	}

	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("reading secret: %w", err)
	}
	secret := strings.TrimRight(line, "\r\n")
	if secret == "" {
		return "", fmt.Errorf("%w: empty secret", domain.ErrInvalidInput)
	}
	return secret, nil
}
