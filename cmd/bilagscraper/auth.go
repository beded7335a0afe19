package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"syscall"

	"bilagscraper/pkg/auth"
	"bilagscraper/pkg/ui"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var logoutAll bool

// authCmd represents the auth command
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage stored portal logins",
	Long: `Manage portal logins stored on this machine.

Logins are stored in:
  - the system keychain (when available)
  - an encrypted file with PBKDF2 key derivation

EMAIL and PASSWORD in the environment always take precedence.`,
}

var loginCmd = &cobra.Command{
	Use:   "login [email]",
	Short: "Store a portal login",
	Example: `  # Prompt for email and password
  bilagscraper auth login

  # Prompt only for the password
  bilagscraper auth login me@example.com`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout [email]",
	Short: "Remove a stored login",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runLogout,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored logins",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(loginCmd)
	authCmd.AddCommand(logoutCmd)
	authCmd.AddCommand(listCmd)

	logoutCmd.Flags().BoolVar(&logoutAll, "all", false, "remove every stored login")
}

func runLogin(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	reader := bufio.NewReader(os.Stdin)

	var address string
	if len(args) > 0 {
		address = strings.TrimSpace(args[0])
	} else {
		fmt.Print("Email: ")
		input, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("failed to read email: %w", err)
		}
		address = strings.TrimSpace(input)
	}
	if address == "" {
		return fmt.Errorf("email is required")
	}

	if existing, _ := manager.Retrieve(address); existing != nil {
		fmt.Printf("A login for %s is already stored. Replace it? (y/N): ", address)
		input, _ := reader.ReadString('\n')
		if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(input)), "y") {
			return nil
		}
	}

	fmt.Print("Password: ")
	password, err := readPassword(reader)
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}
	if password == "" {
		return fmt.Errorf("password is required")
	}

	if err := manager.Store(&auth.Account{Email: address, Password: password}); err != nil {
		return fmt.Errorf("failed to store login: %w", err)
	}

	ui.PrintSuccess("Login stored for " + address)
	if backends := manager.Backends(); len(backends) > 0 {
		ui.PrintInfo("Storage", backends[0])
	}
	fmt.Printf("\nRun it with:\n  bilagscraper scrape --account %s\n", address)
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	if logoutAll {
		if err := manager.DeleteAll(); err != nil {
			return fmt.Errorf("failed to remove logins: %w", err)
		}
		ui.PrintSuccess("All stored logins removed")
		return nil
	}

	var address string
	if len(args) > 0 {
		address = args[0]
	} else {
		accounts, err := manager.List()
		if err != nil {
			return fmt.Errorf("failed to list logins: %w", err)
		}
		switch len(accounts) {
		case 0:
			ui.PrintWarning("No stored logins")
			return nil
		case 1:
			address = accounts[0].Email
		default:
			return fmt.Errorf("%d logins are stored; name the one to remove or pass --all", len(accounts))
		}
	}

	if err := manager.Delete(address); err != nil {
		return fmt.Errorf("failed to remove login: %w", err)
	}
	ui.PrintSuccess("Login removed: " + address)
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	accounts, err := manager.List()
	if err != nil {
		return fmt.Errorf("failed to list logins: %w", err)
	}
	if len(accounts) == 0 {
		ui.PrintInfo("No stored logins", "use 'bilagscraper auth login' to add one")
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.AppendHeader(table.Row{"#", "Email", "Password", "Last modified"})
	for i, account := range accounts {
		sanitized := auth.SanitizeAccount(account)
		t.AppendRow(table.Row{i + 1, sanitized.Email, sanitized.Password, sanitized.LastModified.Format("2006-01-02 15:04:05")})
	}
	t.SetStyle(table.StyleRounded)
	t.Render()
	return nil
}

// readPassword reads a password from stdin without echoing
func readPassword(reader *bufio.Reader) (string, error) {
	if term.IsTerminal(int(syscall.Stdin)) {
		password, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println()
		if err == nil {
			return string(password), nil
		}
	}

	input, err := reader.ReadString('\n')
	if err != nil && input == "" {
		return "", err
	}
	return strings.TrimRight(input, "\r\n"), nil
}
