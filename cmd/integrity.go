package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"deck-sync/feature/deck"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	integrityAccount int64
	integrityJSON    bool
)

// integrityCmd checks that attachment contents are still in the blob store.
var integrityCmd = &cobra.Command{
	Use:   "integrity",
	Short: "Check attachment contents against the blob store",
	Long: `Compares the attachments recorded in the local store with the objects in
the attachment bucket and lists every attachment whose content is missing.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		startTime := time.Now()

		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()

		report, err := deck.Await(ctx, func(cb deck.Callback[*deck.IntegrityReport]) error {
			return a.service.CheckAttachments(integrityAccount, cb)
		})
		if err != nil {
			return fmt.Errorf("integrity check failed: %w", err)
		}

		if integrityJSON {
			filename := fmt.Sprintf("integrity_attachments_%d.json", time.Now().Unix())
			data, err := json.MarshalIndent(report, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to marshal JSON: %w", err)
			}
			if err := os.WriteFile(filename, data, 0644); err != nil {
				return fmt.Errorf("failed to save JSON file: %w", err)
			}
			a.logger.Info("Detailed JSON report saved", zap.String("file", filename))
		}

		fmt.Println("\n=== Attachment Integrity ===")
		fmt.Printf("Checked: %d\n", report.Checked)
		fmt.Printf("Metadata only: %d\n", report.Unstored)
		fmt.Printf("Missing: %d\n", len(report.Missing))
		for _, m := range report.Missing {
			fmt.Printf("  attachment %d (%s): %s\n", m.LocalID, m.Filename, m.ObjectKey)
		}
		fmt.Printf("Execution Time: %s\n", time.Since(startTime).String())
		return nil
	},
}

func init() {
	integrityCmd.Flags().Int64Var(&integrityAccount, "account", 0, "Account ID")
	integrityCmd.Flags().BoolVar(&integrityJSON, "json", false, "Save the report as JSON")
	_ = integrityCmd.MarkFlagRequired("account")
	RootCmd.AddCommand(integrityCmd)
}
