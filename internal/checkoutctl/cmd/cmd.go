// Copyright © 2025 jackelyj <dreamerlyj@gmail.com>
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.
//

// Package cmd implements the checkoutctl command tree: inspection and
// maintenance of locally persisted checkout sessions.
package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/innovationmech/checkout/pkg/checkout"
	"github.com/innovationmech/checkout/pkg/checkout/config"
	"github.com/innovationmech/checkout/pkg/checkout/session"
	"github.com/innovationmech/checkout/pkg/logger"
)

var configPath string

// NewRootCheckoutCtlCommand builds the checkoutctl root command.
func NewRootCheckoutCtlCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "checkoutctl",
		Short: "checkoutctl inspects and maintains persisted checkout sessions",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger.InitLogger()
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to the configuration file")
	root.AddCommand(newSessionsCmd())
	return root
}

func newSessionsCmd() *cobra.Command {
	sessions := &cobra.Command{
		Use:   "sessions",
		Short: "Manage persisted checkout sessions",
	}
	sessions.AddCommand(newSessionsListCmd())
	sessions.AddCommand(newSessionsShowCmd())
	sessions.AddCommand(newSessionsCancelCmd())
	return sessions
}

// openStore builds the session store selected by the configuration.
func openStore(ctx context.Context) (checkout.SessionStore, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	switch cfg.Storage.Backend {
	case config.StorageMemory:
		return session.NewMemoryStore(), nil
	case config.StorageSQLite:
		return session.NewSQLiteStore(cfg.Storage.SQLitePath)
	case config.StorageRedis:
		return session.NewRedisStore(ctx, cfg.Storage.Redis)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

func newSessionsListCmd() *cobra.Command {
	var statusFilter string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List sessions awaiting resolution",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			statuses := []checkout.Status{
				checkout.StatusPending,
				checkout.StatusFailed,
				checkout.StatusReconciling,
			}
			if statusFilter != "" {
				statuses = []checkout.Status{checkout.Status(statusFilter)}
			}

			sessions, err := store.ListSessionsByStatus(ctx, statuses...)
			if err != nil {
				return err
			}
			if len(sessions) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no sessions found")
				return nil
			}
			for _, s := range sessions {
				errCode := "-"
				if s.LastError != nil {
					errCode = s.LastError.Code
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\t%d %s\t%s\n",
					s.ID, s.Status, s.UserID, s.Cart.Total(), s.Cart.Currency, errCode)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&statusFilter, "status", "", "only list sessions in this status")
	return cmd
}

func newSessionsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <session-id>",
		Short: "Show one session as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			s, err := store.GetSession(ctx, args[0])
			if err != nil {
				return err
			}
			encoded, err := json.MarshalIndent(s, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(encoded))
			return nil
		},
	}
}

func newSessionsCancelCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "cancel <session-id>",
		Short: "Remove a session that reconciliation confirmed has no order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			s, err := store.GetSession(ctx, args[0])
			if err != nil {
				return err
			}
			// Only reconciling sessions are known to have no order behind
			// them. Removing anything else risks orphaning a real order.
			if s.Status != checkout.StatusReconciling && !force {
				return fmt.Errorf("session %s is %s, not reconciling; use --force to remove it anyway",
					s.ID, s.Status)
			}

			if err := store.DeleteSession(ctx, s.ID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "session %s removed\n", s.ID)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "remove the session regardless of its status")
	return cmd
}
