package cli

import (
	"context"
	"fmt"

	"github.com/connectry/connectry/internal/initialization"
	"github.com/spf13/cobra"
)

func NewStatusCommand(container *initialization.Container) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status <vendor-user-id>",
		Short: "Show the credential record status for a vendor user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd.Context(), container, args[0])
		},
	}

	return cmd
}

func runStatus(ctx context.Context, container *initialization.Container, vendorUserID string) error {
	record, revision, err := container.GetRecordStore().GetRecord(ctx, vendorUserID)
	if err != nil {
		return fmt.Errorf("failed to load credential record: %w", err)
	}

	fmt.Printf("Vendor user:          %s\n", record.VendorUserID)
	fmt.Printf("Status:               %s\n", record.Status)
	fmt.Printf("Revision:             %s\n", revision)

	if record.Token.HasExpiry() {
		fmt.Printf("Token expires at:     %s\n", record.Token.ExpiresAt.Format("2006-01-02 15:04:05 MST"))
	} else {
		fmt.Println("Token expires at:     never")
	}

	fmt.Printf("Has refresh token:    %t\n", record.Token.RefreshToken != "")
	fmt.Printf("Refresh error count:  %d\n", record.RefreshErrorCount)

	if record.LastRefreshError != "" {
		fmt.Printf("Last refresh error:   %s\n", record.LastRefreshError)
	}

	return nil
}
