package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"svinn/internal/auth"
	"svinn/internal/core"
)

var (
	userName          string
	userApproved      bool
	userPasswordStdin bool
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage dashboard accounts",
}

var userAddCmd = &cobra.Command{
	Use:   "add EMAIL",
	Short: "Create an account",
	Long: `Create a dashboard account. The password is prompted for, or read
from the first line of stdin with --password-stdin.

Example:
  svinnctl user add chef@example.com --name "Köket" --approved`,
	Args: cobra.ExactArgs(1),
	RunE: runUserAdd,
}

var userApproveCmd = &cobra.Command{
	Use:   "approve EMAIL",
	Short: "Let an account see the dashboard",
	Args:  cobra.ExactArgs(1),
	RunE:  setApproval(true),
}

var userRevokeCmd = &cobra.Command{
	Use:   "revoke EMAIL",
	Short: "Withdraw an account's approval",
	Args:  cobra.ExactArgs(1),
	RunE:  setApproval(false),
}

func init() {
	userAddCmd.Flags().StringVar(&userName, "name", "", "Display name shown in the dashboard")
	userAddCmd.Flags().BoolVar(&userApproved, "approved", false, "Approve the account right away")
	userAddCmd.Flags().BoolVar(&userPasswordStdin, "password-stdin", false, "Read the password from stdin")

	userCmd.AddCommand(userAddCmd, userApproveCmd, userRevokeCmd)
}

func runUserAdd(cmd *cobra.Command, args []string) error {
	email := strings.TrimSpace(args[0])
	if !strings.Contains(email, "@") {
		return fmt.Errorf("invalid email %q", email)
	}

	password, err := readPassword(cmd.InOrStdin(), cmd.ErrOrStderr(), userPasswordStdin)
	if err != nil {
		return err
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}

	e, err := openEnv(cmd.Context())
	if err != nil {
		return err
	}
	defer e.close()

	u := core.User{Email: email, PasswordHash: hash, DisplayName: userName, Approved: userApproved}
	if err := e.backend.Backend.CreateUser(cmd.Context(), u); err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	state := "pending approval"
	if userApproved {
		state = "approved"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created %s (%s)\n", email, state)
	return nil
}

func setApproval(approved bool) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		e, err := openEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.close()

		u, err := e.backend.Backend.FindUserByEmail(cmd.Context(), args[0])
		if errors.Is(err, core.ErrUserNotFound) {
			return fmt.Errorf("no account for %s", args[0])
		}
		if err != nil {
			return err
		}
		if err := e.backend.Backend.SetApproved(cmd.Context(), u.ID, approved); err != nil {
			return fmt.Errorf("update approval: %w", err)
		}
		verb := "Approved"
		if !approved {
			verb = "Revoked"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", verb, u.Email)
		return nil
	}
}

// readPassword prompts twice on a terminal, or reads one line otherwise.
func readPassword(in io.Reader, prompt io.Writer, fromStdin bool) (string, error) {
	if fromStdin || !term.IsTerminal(int(os.Stdin.Fd())) {
		line, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", fmt.Errorf("read password: %w", err)
		}
		return strings.TrimRight(line, "\r\n"), nil
	}

	fmt.Fprint(prompt, "Password: ")
	first, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(prompt)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	fmt.Fprint(prompt, "Repeat password: ")
	second, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(prompt)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	if string(first) != string(second) {
		return "", errors.New("passwords do not match")
	}
	return string(first), nil
}
