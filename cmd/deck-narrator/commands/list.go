package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/spherical/deck-narrator/cmd/deck-narrator/ui"
)

var listUserID string

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List a user's presentations",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

func init() {
	listCmd.Flags().StringVar(&listUserID, "user", "", "User ID (required)")
	listCmd.MarkFlagRequired("user")
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd.Context(), appCfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	list, err := a.repo.ListPresentations(cmd.Context(), listUserID)
	if err != nil {
		return fmt.Errorf("list presentations: %w", err)
	}
	if len(list) == 0 {
		ui.Info("No presentations for %s", listUserID)
		return nil
	}

	rows := make([][]string, 0, len(list))
	for _, p := range list {
		rows = append(rows, []string{
			p.ID,
			ui.Truncate(p.FileName, 40),
			fmt.Sprint(p.SlideCount),
			p.CreatedAt.Local().Format(time.DateTime),
		})
	}
	ui.Table([]string{"ID", "FILE", "SLIDES", "CREATED"}, rows)
	return nil
}
