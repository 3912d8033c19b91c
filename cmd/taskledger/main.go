// Command taskledger is the task ledger CLI client.
package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/GoCodeAlone/taskledger/client"
	"github.com/GoCodeAlone/taskledger/internal/version"
)

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		if client.IsUnauthorized(err) {
			fmt.Fprintln(os.Stderr, "hint: run `taskledger login` or set $TASKLEDGER_TOKEN")
		}
		os.Exit(1)
	}
}

// app carries the persistent flag values shared by every command.
type app struct {
	server  string
	token   string
	timeout time.Duration
}

func (a *app) client() *client.Client {
	c := client.New(a.server, a.token)
	c.HTTPClient.Timeout = a.timeout
	return c
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "taskledger",
		Short:         "Manage your task ledger",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&a.server, "server", envOr("TASKLEDGER_SERVER", client.DefaultServer), "server URL (or $TASKLEDGER_SERVER)")
	root.PersistentFlags().StringVar(&a.token, "token", os.Getenv("TASKLEDGER_TOKEN"), "JWT auth token (or $TASKLEDGER_TOKEN)")
	root.PersistentFlags().DurationVar(&a.timeout, "timeout", 15*time.Second, "request timeout")

	root.AddCommand(
		versionCmd(),
		a.statusCmd(),
		a.loginCmd(),
		hashKeyCmd(),
		a.addCmd(),
		a.toggleCmd(),
		a.editCmd(),
		a.rmCmd(),
		a.showCmd(),
		a.lsCmd(),
		a.countCmd(),
		a.eventsCmd(),
		a.exportCmd(),
	)
	return root
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String("taskledger"))
		},
	}
}

func (a *app) statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show server status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			result, err := a.client().Status(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "status:  %s\n", result["status"])
			fmt.Fprintf(out, "version: %s\n", result["version"])
			return nil
		},
	}
}

func parseID(s string) (uint64, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid task id %q", s)
	}
	return id, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
