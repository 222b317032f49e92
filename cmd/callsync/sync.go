package main

import (
	"context"
	"fmt"
	"io"

	"github.com/railzwaylabs/callsync/internal/callsync"
	"github.com/spf13/cobra"
)

func newSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync [tenant-id]",
		Short: "Run one sync cycle for a tenant, or for every tenant",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var orch *callsync.Orchestrator
			return runOneShot(func(ctx context.Context) error {
				if len(args) == 1 {
					res, err := orch.SyncTenant(ctx, args[0])
					if err != nil {
						return err
					}
					printResult(cmd.OutOrStdout(), res)
					return nil
				}

				sweep, err := orch.SyncAll(ctx)
				for _, res := range sweep.Results {
					printResult(cmd.OutOrStdout(), res)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "tenants=%d succeeded=%d failed=%d\n",
					sweep.Tenants, sweep.Succeeded, sweep.Failed)
				return err
			}, &orch)
		},
	}
}

func printResult(w io.Writer, res callsync.SyncResult) {
	fmt.Fprintf(w, "tenant=%s final=%s fetched=%d cached=%d used_minutes=%.2f degraded=%t",
		res.TenantID, res.Final, res.Fetched, res.CacheSize, res.UsedMinutes, res.Degraded)
	if res.Notification != nil {
		fmt.Fprintf(w, " notification=%q", res.Notification.Title)
	}
	if res.Err != nil {
		fmt.Fprintf(w, " error=%q", res.Err.Error())
	}
	fmt.Fprintln(w)
}
