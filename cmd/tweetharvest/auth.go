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

	"tweetharvest/pkg/auth"
	"tweetharvest/pkg/ui"
)

func newAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage the API bearer token",
		Long: `Manage the bearer token used for full-archive search.

Tokens are resolved in this order:
  - api.bearer_token from the config file, .env or environment
  - TWEETHARVEST_BEARER_TOKEN / BEARER_TOKEN
  - the system keyring (written by 'tweetharvest auth set')`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "set",
		Short: "Store a bearer token in the system keyring",
		Long: `Store a bearer token in the system keyring. The token is read from the
terminal without echo, or from standard input when piped.`,
		Example: `  tweetharvest auth set
  printf '%s' "$TOKEN" | tweetharvest auth set`,
		Args: cobra.NoArgs,
		RunE: runAuthSet,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "delete",
		Short: "Remove the stored bearer token",
		Args:  cobra.NoArgs,
		RunE:  runAuthDelete,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show which stores hold a bearer token",
		Args:  cobra.NoArgs,
		Run:   runAuthStatus,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "guide",
		Short: "Explain how to obtain a bearer token",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			auth.ShowTokenGuide(cmd.OutOrStdout())
		},
	})

	return cmd
}

func runAuthSet(cmd *cobra.Command, args []string) error {
	out := ui.NewPrinter(cmd.OutOrStdout())

	fmt.Fprint(cmd.OutOrStdout(), "🔐 Bearer token: ")
	token, err := readToken(cmd.InOrStdin())
	fmt.Fprintln(cmd.OutOrStdout())
	if err != nil {
		return fmt.Errorf("failed to read token: %w", err)
	}

	store, err := newAuthManager().Store(token)
	if err != nil {
		if errors.Is(err, auth.ErrStoreUnavailable) {
			out.PrintWarning("No writable keyring found; put BEARER_TOKEN in a .env file instead")
		}
		return err
	}

	out.PrintSuccess(fmt.Sprintf("Token %s stored in %s", auth.MaskToken(strings.TrimSpace(token)), store))
	return nil
}

func runAuthDelete(cmd *cobra.Command, args []string) error {
	if err := newAuthManager().Delete(); err != nil {
		return err
	}
	ui.NewPrinter(cmd.OutOrStdout()).PrintSuccess("Stored token removed")
	return nil
}

func runAuthStatus(cmd *cobra.Command, args []string) {
	out := ui.NewPrinter(cmd.OutOrStdout())
	for _, status := range newAuthManager().Status() {
		if status.Present {
			out.PrintInfo(status.Store, status.Masked)
		} else {
			out.PrintInfo(status.Store, out.Dim("not set"))
		}
	}
}

// readToken reads without echo from a terminal, otherwise one line from in
func readToken(in io.Reader) (string, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		token, err := term.ReadPassword(int(f.Fd()))
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(token)), nil
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
