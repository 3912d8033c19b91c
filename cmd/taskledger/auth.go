package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
)

func (a *app) loginCmd() *cobra.Command {
	var owner, key string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Exchange an API key for a token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			resp, err := a.client().Login(cmd.Context(), owner, key)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "logged in as %s until %s\n", resp.Owner, resp.ExpiresAt.Local().Format("2006-01-02 15:04"))
			fmt.Fprintf(out, "export TASKLEDGER_TOKEN=%s\n", resp.Token)
			return nil
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "", "Owner to log in as")
	cmd.Flags().StringVar(&key, "key", envOr("TASKLEDGER_KEY", ""), "API key (or $TASKLEDGER_KEY)")
	_ = cmd.MarkFlagRequired("owner")
	return cmd
}

func hashKeyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-key <key>",
		Short: "Print the bcrypt hash of an API key for auth.keys[].key_hash",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := hashKey(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}

// hashKey returns the bcrypt hash stored in auth.keys[].key_hash.
func hashKey(key string) (string, error) {
	if key == "" {
		return "", errors.New("empty key")
	}
	b, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash key: %w", err)
	}
	return string(b), nil
}
