package main

import (
	"context"
	"fmt"
	"time"

	"github.com/railzwaylabs/callsync/internal/callsync"
	tenantdomain "github.com/railzwaylabs/callsync/internal/tenant/domain"
	"github.com/spf13/cobra"
)

func newTenantCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tenant",
		Short: "Manage tenants",
	}
	cmd.AddCommand(newTenantAddCmd(), newTenantDeleteCmd())
	return cmd
}

func newTenantAddCmd() *cobra.Command {
	var (
		t         tenantdomain.Tenant
		createdAt string
	)
	cmd := &cobra.Command{
		Use:   "add <tenant-id>",
		Short: "Create or update a tenant",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t.ID = args[0]
			if createdAt != "" {
				at, err := time.Parse(time.DateOnly, createdAt)
				if err != nil {
					return fmt.Errorf("--created-at: %w", err)
				}
				t.CreatedAt = at.UTC()
			}

			var store tenantdomain.Store
			return runOneShot(func(ctx context.Context) error {
				if err := store.UpsertTenant(ctx, t); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "tenant %s saved\n", t.ID)
				return nil
			}, &store)
		},
	}

	f := cmd.Flags()
	f.StringVar(&t.Name, "name", "", "display name")
	f.Float64Var(&t.MinuteLimit, "minute-limit", 0, "monthly minute limit")
	f.BoolVar(&t.OveragesEnabled, "overages", false, "allow usage past the limit without warnings")
	f.StringVar(&t.WebhookURL, "webhook-url", "", "notification webhook")
	f.StringVar(&t.ProviderAPIKey, "api-key", "", "provider API key")
	f.StringVar(&createdAt, "created-at", "", "account creation date (YYYY-MM-DD), anchors the billing cycle")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func newTenantDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <tenant-id>",
		Short: "Delete a tenant with its cached calls and notifications",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var orch *callsync.Orchestrator
			return runOneShot(func(ctx context.Context) error {
				if err := orch.DeleteTenant(ctx, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "tenant %s deleted\n", args[0])
				return nil
			}, &orch)
		},
	}
}
