package cli

import (
	"context"
	"fmt"

	"github.com/connectry/connectry/internal/initialization"
	"github.com/connectry/connectry/pkg/domain"
	"github.com/spf13/cobra"
)

func NewRefreshCommand(container *initialization.Container) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "refresh <vendor-user-id>",
		Short: "Ensure a valid access token for a vendor user, refreshing if needed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRefresh(cmd.Context(), container, args[0])
		},
	}

	return cmd
}

func runRefresh(ctx context.Context, container *initialization.Container, vendorUserID string) error {
	ctx = domain.NewContextWithExecutionContext(ctx, "", vendorUserID)

	token, err := container.GetTokenManager().EnsureAccessToken(ctx, vendorUserID)
	if err != nil {
		return fmt.Errorf("failed to ensure access token: %w", err)
	}

	fmt.Println("Access token is valid")
	if token.HasExpiry() {
		fmt.Printf("Expires at: %s\n", token.ExpiresAt.Format("2006-01-02 15:04:05 MST"))
	}

	return nil
}
