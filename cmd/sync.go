package cmd

import (
	"context"
	"fmt"

	"github.com/marcus/pos/internal/events"
	"github.com/marcus/pos/internal/output"
	"github.com/marcus/pos/internal/sync"
	"github.com/marcus/pos/internal/syncconfig"
	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:     "sync",
	Short:   "Push queued changes to the server",
	Long:    `Drain the sync queue: products first, then sales, then restocks. Failed items stay queued for 'pos sync retry'.`,
	GroupID: "sync",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()

		client := newAPIClient()
		if client == nil {
			output.Error("not logged in: run 'pos auth login' or set POS_AUTH_KEY")
			return fmt.Errorf("not authenticated")
		}
		if _, err := client.HealthCheck(); err != nil {
			output.Error("server unreachable: %v", err)
			return err
		}

		engine := sync.New(s, client, events.NewBus(), sync.WithDelay(syncconfig.GetSyncDelay()))
		result, err := engine.SyncAll(cmd.Context(), func(p sync.Progress) {
			output.Info("[%d/%d] %s", p.Current, p.Total, p.Message)
		})
		if err != nil {
			output.Error("%v", err)
			return err
		}

		reportSyncResult(result)
		if result.Failed > 0 {
			return fmt.Errorf("%d items failed", result.Failed)
		}
		return nil
	},
}

var syncStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show pending and failed queue items",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()

		items, err := s.ListPendingQueue()
		if err != nil {
			output.Error("%v", err)
			return err
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return output.JSON(items)
		}
		if len(items) == 0 {
			output.Success("Queue is empty, everything is synced")
			return nil
		}

		failed := 0
		for _, item := range items {
			line := fmt.Sprintf("%s  %s %s %s", item.ID, item.Type, item.Action, item.TargetID)
			if item.LastError != "" {
				failed++
				line += fmt.Sprintf("  (%d attempts, last error: %s)", item.Attempts, item.LastError)
			}
			fmt.Println(line)
		}
		output.Info("%d pending, %d with errors", len(items), failed)
		return nil
	},
}

var syncRetryCmd = &cobra.Command{
	Use:   "retry <queue-id>",
	Short: "Retry a single failed queue item",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()

		client := newAPIClient()
		if client == nil {
			output.Error("not logged in: run 'pos auth login' or set POS_AUTH_KEY")
			return fmt.Errorf("not authenticated")
		}

		engine := sync.New(s, client, events.NewBus())
		if err := engine.SyncOne(context.Background(), args[0]); err != nil {
			output.Error("%v", err)
			return err
		}
		output.Success("Synced %s", args[0])
		return nil
	},
}

var syncPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Drop queue items whose target record no longer exists",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()

		dropped, err := s.DropOrphanedQueueItems()
		if err != nil {
			output.Error("%v", err)
			return err
		}
		output.Success("Dropped %d orphaned items", dropped)
		return nil
	},
}

func reportSyncResult(result *sync.Result) {
	output.Info("Synced %d, failed %d, skipped %d", result.Successful, result.Failed, result.Skipped)
	for _, e := range result.Errors {
		output.Warning("%s %s: %s", e.Type, e.TargetID, e.Message)
	}
}

func init() {
	rootCmd.AddCommand(syncCmd)
	syncCmd.AddCommand(syncStatusCmd, syncRetryCmd, syncPruneCmd)

	syncStatusCmd.Flags().Bool("json", false, "Output as JSON")
}
