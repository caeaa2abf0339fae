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

	"github.com/example/go-genstudio/internal/credentials"
)

// Test seams.
var (
	stdinIsTerminal = func() bool { return term.IsTerminal(int(os.Stdin.Fd())) }
	readPassword    = func() ([]byte, error) { return term.ReadPassword(int(os.Stdin.Fd())) }
)

func newKeyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "key",
		Short: "Manage the stored API key and local role",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "set [KEY]",
		Short: "Store an API key (prompted when omitted)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			var key string
			if len(args) == 1 {
				key = args[0]
			} else {
				key, err = promptKey(cmd.InOrStdin(), cmd.ErrOrStderr())
				if err != nil {
					return err
				}
			}

			if err := credentials.NewStore(cfg.Paths.StateDir).SetKey(key); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "stored key %s\n", maskKey(key))
			return err
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show the stored key, premium flag and role",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}
			return printKeyStatus(cmd.OutOrStdout(), credentials.NewStore(cfg.Paths.StateDir), cfg.Provider.APIKey)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Remove the stored key",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}
			if err := credentials.NewStore(cfg.Paths.StateDir).Clear(); err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), "key cleared")
			return err
		},
	})

	var clearRole bool
	role := &cobra.Command{
		Use:   "role [owner|user|guest]",
		Short: "Show or set the local role",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}
			store := credentials.NewStore(cfg.Paths.StateDir)

			switch {
			case clearRole:
				return store.ClearRole()
			case len(args) == 1:
				r, err := credentials.ParseRole(args[0])
				if err != nil {
					return err
				}
				return store.SetRole(r)
			}

			r, err := store.Role()
			if err != nil {
				return err
			}
			if r == "" {
				r = "none"
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), r)
			return err
		},
	}
	role.Flags().BoolVar(&clearRole, "clear", false, "Remove the stored role")
	cmd.AddCommand(role)

	return cmd
}

// promptKey reads a key without echo from a terminal, or one line otherwise.
func promptKey(in io.Reader, prompt io.Writer) (string, error) {
	if stdinIsTerminal() {
		_, _ = fmt.Fprint(prompt, "API key: ")
		b, err := readPassword()
		_, _ = fmt.Fprintln(prompt)
		if err != nil {
			return "", fmt.Errorf("read key: %w", err)
		}
		return strings.TrimSpace(string(b)), nil
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read key: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func printKeyStatus(w io.Writer, store *credentials.Store, configured string) error {
	st, err := store.Status()
	if err != nil {
		return err
	}

	switch {
	case strings.TrimSpace(configured) != "":
		_, _ = fmt.Fprintf(w, "key: %s (from configuration)\n", maskKey(configured))
	case st == nil:
		_, _ = fmt.Fprintln(w, "key: none")
	default:
		_, _ = fmt.Fprintf(w, "key: %s\n", maskKey(st.Key))
	}

	premium := credentials.PremiumUnknown
	if st != nil {
		premium = st.Premium
	}
	_, _ = fmt.Fprintf(w, "premium: %s\n", premium)

	r, err := store.Role()
	if err != nil {
		return err
	}
	if r == "" {
		r = "none"
	}
	_, err = fmt.Fprintf(w, "role: %s\n", r)
	return err
}

// maskKey keeps the first and last four characters.
func maskKey(k string) string {
	k = strings.TrimSpace(k)
	if len(k) <= 8 {
		return strings.Repeat("*", len(k))
	}
	return k[:4] + strings.Repeat("*", len(k)-8) + k[len(k)-4:]
}
