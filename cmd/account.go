package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"deck-sync/feature/deck"
	"deck-sync/feature/deck/models"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	accountInput deck.AccountInput
	yesConfirm   bool
)

// accountCmd is the parent command for account management.
var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Manage server accounts",
}

var accountAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a server account",
	Long: `Adds an account. The app password is read from --token or the
DECK_TOKEN environment variable. Nothing is fetched until the first sync.

Examples:
  account add --name work --url https://cloud.example.com --user alice`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()

		in := accountInput
		if in.Token == "" {
			in.Token = os.Getenv("DECK_TOKEN")
		}
		account, err := deck.Await(ctx, func(cb deck.Callback[*models.Account]) error {
			return a.service.CreateAccount(in, cb)
		})
		if err != nil {
			return err
		}
		a.logger.Info("Account added", zap.Int64("id", account.ID), zap.String("name", account.Name))
		return nil
	},
}

var accountListCmd = &cobra.Command{
	Use:   "list",
	Short: "List accounts",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()

		accounts, err := deck.Await(ctx, a.service.ReadAccounts)
		if err != nil {
			return err
		}
		for _, acc := range accounts {
			last := "never"
			if acc.LastSyncAt != nil {
				last = acc.LastSyncAt.Local().Format("2006-01-02 15:04")
			}
			fmt.Printf("%d\t%s\t%s@%s\tlast sync: %s\n", acc.ID, acc.Name, acc.UserName, acc.URL, last)
		}
		return nil
	},
}

var accountRemoveCmd = &cobra.Command{
	Use:   "rm ID",
	Short: "Remove an account and all its local data",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid account id %q", args[0])
		}

		ctx := context.Background()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()

		if !confirmDestructiveAction() {
			a.logger.Warn("Operation cancelled by user. No changes were made.")
			return nil
		}
		if _, err := deck.Await(ctx, func(cb deck.Callback[struct{}]) error {
			return a.service.DeleteAccount(id, cb)
		}); err != nil {
			return err
		}
		a.logger.Info("Account removed", zap.Int64("id", id))
		return nil
	},
}

// confirmDestructiveAction prompts the user for confirmation or uses --yes flag.
func confirmDestructiveAction() bool {
	if yesConfirm {
		return true
	}

	fmt.Print("Local changes that were not synchronized will be lost. Type 'yes' to confirm: ")
	reader := bufio.NewReader(os.Stdin)
	response, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	return strings.TrimSpace(response) == "yes"
}

func init() {
	accountAddCmd.Flags().StringVar(&accountInput.Name, "name", "", "Account name")
	accountAddCmd.Flags().StringVar(&accountInput.URL, "url", "", "Server URL")
	accountAddCmd.Flags().StringVar(&accountInput.UserName, "user", "", "User name")
	accountAddCmd.Flags().StringVar(&accountInput.Token, "token", "", "App password")
	accountAddCmd.Flags().StringVar(&accountInput.Color, "color", "", "Account color")
	_ = accountAddCmd.MarkFlagRequired("name")
	_ = accountAddCmd.MarkFlagRequired("url")
	_ = accountAddCmd.MarkFlagRequired("user")

	accountRemoveCmd.Flags().BoolVar(&yesConfirm, "yes", false, "Do not ask for confirmation")

	accountCmd.AddCommand(accountAddCmd, accountListCmd, accountRemoveCmd)
	RootCmd.AddCommand(accountCmd)
}
