package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/kiwari-pos/tabs/internal/auth"
	"github.com/kiwari-pos/tabs/internal/enum"
	"github.com/spf13/cobra"
)

var (
	tokenUser string
	tokenTTL  time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token <MANAGER|CASHIER|KITCHEN|BAR>",
	Short: "mint a staff token signed with JWT_SECRET for local testing",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		role := strings.ToUpper(args[0])
		if !enum.IsUserRole(role) {
			return errors.Newf("unknown role %q", args[0])
		}

		userID := uuid.New()
		if tokenUser != "" {
			id, err := uuid.Parse(tokenUser)
			if err != nil {
				return errors.Wrap(err, "--user")
			}
			userID = id
		}

		token, err := auth.GenerateToken(cfg.JWTSecret, userID, role, tokenTTL)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenUser, "user", "", "user id to embed (random when empty)")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 12*time.Hour, "token lifetime")
}
