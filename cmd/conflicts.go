package cmd

import (
	"context"
	"fmt"
	"strconv"

	"deck-sync/feature/deck"
	"deck-sync/feature/deck/models"

	"github.com/spf13/cobra"
)

var (
	conflictsAccount int64
	conflictsKeep    string
)

// conflictsCmd is the parent command for conflict handling.
var conflictsCmd = &cobra.Command{
	Use:   "conflicts",
	Short: "List and resolve sync conflicts",
}

var conflictsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List unresolved conflicts of an account",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()

		conflicts, err := deck.Await(ctx, func(cb deck.Callback[[]models.Conflict]) error {
			return a.service.ListConflicts(conflictsAccount, cb)
		})
		if err != nil {
			return err
		}
		if len(conflicts) == 0 {
			fmt.Println("No conflicts.")
			return nil
		}
		for _, c := range conflicts {
			fmt.Printf("%d\t%s %d\t%s\tlocal: %q\tremote: %q\n", c.ID, c.Kind, c.EntityID, c.Field, c.LocalValue, c.RemoteValue)
		}
		return nil
	},
}

var conflictsResolveCmd = &cobra.Command{
	Use:   "resolve ID",
	Short: "Keep the local or the remote side of a conflict",
	Long: `Resolves the entity the conflict belongs to. Every conflicting field of
that entity takes the chosen side; the result is pushed on the next sync.

Examples:
  conflicts resolve 3 --keep local`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid conflict id %q", args[0])
		}
		if conflictsKeep != "local" && conflictsKeep != "remote" {
			return fmt.Errorf(`--keep must be "local" or "remote"`)
		}

		ctx := context.Background()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()

		_, err = deck.Await(ctx, func(cb deck.Callback[struct{}]) error {
			return a.service.ResolveConflict(id, conflictsKeep == "local", cb)
		})
		return err
	},
}

func init() {
	conflictsListCmd.Flags().Int64Var(&conflictsAccount, "account", 0, "Account ID")
	_ = conflictsListCmd.MarkFlagRequired("account")
	conflictsResolveCmd.Flags().StringVar(&conflictsKeep, "keep", "", `"local" or "remote"`)
	_ = conflictsResolveCmd.MarkFlagRequired("keep")

	conflictsCmd.AddCommand(conflictsListCmd, conflictsResolveCmd)
	RootCmd.AddCommand(conflictsCmd)
}
