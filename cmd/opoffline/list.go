package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kerbaras/onepiece-offline/pkg/app/components"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List downloaded chapters",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		byDate, _ := cmd.Flags().GetBool("by-date")
		limit, _ := cmd.Flags().GetInt("limit")

		ctrl, log, err := newController()
		if err != nil {
			return err
		}
		defer ctrl.Close()
		if err := ctrl.Updates.Refresh(cmd.Context()); err != nil {
			log.Err(err).Warn("catalog unavailable, publication dates may be missing")
		}

		chapters, err := ctrl.ListChapters(cmd.Context(), byDate, limit)
		if err != nil {
			return err
		}
		if len(chapters) == 0 {
			fmt.Println("Noch keine Kapitel heruntergeladen. Nutze 'opoffline download <kapitel>'.")
			return nil
		}

		fmt.Printf("\nBibliothek (%d Kapitel)\n\n", len(chapters))
		fmt.Println(components.NewLibraryList(chapters, false).View())
		return nil
	},
}

func init() {
	listCmd.Flags().Bool("by-date", false, "Newest publication first")
	listCmd.Flags().Int("limit", 0, "Show at most this many chapters")
}
