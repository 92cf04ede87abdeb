package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

type options struct {
	baseURL        string
	timeout        time.Duration
	idempotencyKey string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:          "esledger-cli",
		Short:        "ESLedger CLI tool",
		Long:         `A command line interface for interacting with the ESLedger API.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.baseURL, "url", "http://localhost:8080", "Base URL of the ESLedger API")
	rootCmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 10*time.Second, "Request timeout")
	rootCmd.PersistentFlags().StringVar(&opts.idempotencyKey, "idempotency-key", "", "Idempotency-Key header for mutating requests")

	rootCmd.AddCommand(accountCmd(opts))
	return rootCmd
}

func accountCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Account operations",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "register <id>",
			Short: "Register a new account",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return opts.call(cmd, http.MethodPost, "/api/v1/accounts/", map[string]any{"id": args[0]})
			},
		},
		&cobra.Command{
			Use:   "get <id>",
			Short: "Show an account",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return opts.call(cmd, http.MethodGet, accountPath(args[0]), nil)
			},
		},
		eventsCmd(opts),
		&cobra.Command{
			Use:   "balance <id>",
			Short: "Show the projected balance of an account",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return opts.call(cmd, http.MethodGet, accountPath(args[0])+"/balance", nil)
			},
		},
		amountCmd(opts, "provision", "Add credit to an account", "/credits"),
		amountCmd(opts, "withdraw", "Withdraw credit from an account", "/withdrawals"),
		&cobra.Command{
			Use:   "transfer <origin> <destination> <amount>",
			Short: "Request a transfer between accounts",
			Args:  cobra.ExactArgs(3),
			RunE: func(cmd *cobra.Command, args []string) error {
				amount, err := parseAmount(args[2])
				if err != nil {
					return err
				}
				return opts.call(cmd, http.MethodPost, accountPath(args[0])+"/transfers", map[string]any{
					"destination_id": args[1],
					"amount":         amount,
				})
			},
		},
		&cobra.Command{
			Use:   "cancel <account> <transfer-id>",
			Short: "Cancel a pending transfer",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return opts.call(cmd, http.MethodDelete, accountPath(args[0])+"/transfers/"+url.PathEscape(args[1]), nil)
			},
		},
		reconcileCmd(opts),
	)

	return cmd
}

func eventsCmd(opts *options) *cobra.Command {
	var fromVersion int

	cmd := &cobra.Command{
		Use:   "events <id>",
		Short: "List the events of an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := accountPath(args[0]) + "/events"
			if fromVersion > 1 {
				path += "?from_version=" + strconv.Itoa(fromVersion)
			}
			return opts.call(cmd, http.MethodGet, path, nil)
		},
	}
	cmd.Flags().IntVar(&fromVersion, "from-version", 1, "First event version to show")
	return cmd
}

func amountCmd(opts *options, use, short, suffix string) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id> <amount>",
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := parseAmount(args[1])
			if err != nil {
				return err
			}
			return opts.call(cmd, http.MethodPost, accountPath(args[0])+suffix, map[string]any{"amount": amount})
		},
	}
}

func reconcileCmd(opts *options) *cobra.Command {
	var repair bool

	cmd := &cobra.Command{
		Use:   "reconcile <id>",
		Short: "Compare the balance read model with the event store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			method := http.MethodGet
			if repair {
				method = http.MethodPost
			}
			return opts.call(cmd, method, accountPath(args[0])+"/reconciliation", nil)
		},
	}
	cmd.Flags().BoolVar(&repair, "repair", false, "Overwrite a drifted read model")
	return cmd
}

func accountPath(id string) string {
	return "/api/v1/accounts/" + url.PathEscape(id)
}

func parseAmount(s string) (int64, error) {
	amount, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return amount, nil
}

// call sends a request and prints the JSON response. Non-2xx responses are
// printed too and reported as an error.
func (o *options) call(cmd *cobra.Command, method, path string, payload any) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), o.timeout)
	defer cancel()

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, o.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if o.idempotencyKey != "" && method == http.MethodPost {
		req.Header.Set("Idempotency-Key", o.idempotencyKey)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("error making request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	printJSON(cmd.OutOrStdout(), raw)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("request failed with status %d", resp.StatusCode)
	}
	return nil
}

// printJSON indents raw when it is JSON and prints it unchanged otherwise.
func printJSON(w io.Writer, raw []byte) {
	var buf bytes.Buffer
	if err := json.Indent(&buf, bytes.TrimSpace(raw), "", "  "); err != nil {
		fmt.Fprintln(w, string(bytes.TrimSpace(raw)))
		return
	}
	fmt.Fprintln(w, buf.String())
}
