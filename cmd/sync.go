package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"deck-sync/feature/deck"
	"deck-sync/feature/deck/session"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	syncAccount int64
	syncBoard   int64
	syncCard    int64
)

// syncCmd runs one sync session in the foreground.
var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Synchronize an account, a board or a card",
	Long: `Runs one synchronization session and prints its report.

Examples:
  # Every board of account 1
  sync --account 1

  # Only board 4 (local id)
  sync --account 1 --board 4

  # Only card 12 (local id)
  sync --account 1 --card 12`,
	RunE: runSync,
}

func init() {
	syncCmd.Flags().Int64Var(&syncAccount, "account", 0, "Account ID")
	syncCmd.Flags().Int64Var(&syncBoard, "board", 0, "Local board ID")
	syncCmd.Flags().Int64Var(&syncCard, "card", 0, "Local card ID")
	_ = syncCmd.MarkFlagRequired("account")
	syncCmd.MarkFlagsMutuallyExclusive("board", "card")

	RootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	report, err := deck.Await(ctx, func(cb deck.Callback[session.Report]) error {
		switch {
		case syncCard != 0:
			return a.service.SynchronizeCard(syncCard, cb)
		case syncBoard != 0:
			return a.service.SynchronizeBoard(syncAccount, syncBoard, cb)
		}
		return a.service.SynchronizeAccount(syncAccount, cb)
	})
	if report.ID != "" {
		printSyncReport(a.logger, report)
	}
	if err != nil {
		return err
	}
	if report.HasConflicts() {
		return fmt.Errorf("%d unresolved conflicts, see 'conflicts list --account %d'", report.Conflicts, syncAccount)
	}
	return nil
}

// printSyncReport prints a session report using logger.
func printSyncReport(l *zap.Logger, r session.Report) {
	l.Info("Sync report",
		zap.String("session", r.ID),
		zap.String("state", string(r.State)),
		zap.Int("steps", r.Steps),
		zap.Int("conflicts", r.Conflicts),
		zap.Int("item_errors", len(r.Items)),
		zap.Duration("duration", r.Finished.Sub(r.Started)),
	)
	for kind, s := range r.Summary {
		if s.Inserts+s.Creates+s.Updates+s.Deletes+s.Resolves == 0 {
			continue
		}
		l.Info("Entity summary",
			zap.String("entity", kind),
			zap.Int("inserted", s.Inserts),
			zap.Int("created", s.Creates),
			zap.Int("updated", s.Updates),
			zap.Int("deleted", s.Deletes),
			zap.Int("resolved", s.Resolves),
		)
	}

	maxShow := 5
	if len(r.Items) < maxShow {
		maxShow = len(r.Items)
	}
	for _, item := range r.Items[:maxShow] {
		l.Warn("Item failed", zap.String("key", item.Key), zap.Error(item.Err))
	}
	if len(r.Items) > maxShow {
		l.Warn("Additional item errors not shown", zap.Int("count", len(r.Items)-maxShow))
	}
}
