package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/kerbaras/onepiece-offline/pkg/app/components"
)

var availableCmd = &cobra.Command{
	Use:   "available",
	Short: "List the chapters offered by the remote site",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		ctrl, _, err := newController()
		if err != nil {
			return err
		}
		defer ctrl.Close()

		entries, err := ctrl.Available(cmd.Context())
		if err != nil {
			return err
		}
		if limit > 0 && len(entries) > limit {
			entries = entries[:limit]
		}
		chapters, err := ctrl.ListChapters(cmd.Context(), false, 0)
		if err != nil {
			return err
		}
		downloaded := make(map[int]bool, len(chapters))
		for _, ch := range chapters {
			downloaded[ch.Number] = true
		}

		fmt.Printf("\nKatalog (%d Kapitel)\n\n", len(entries))
		fmt.Println(components.NewCatalogList(entries, downloaded, false).View())
		return nil
	},
}

var latestCmd = &cobra.Command{
	Use:   "latest",
	Short: "Show the newest chapter in the catalog",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctrl, _, err := newController()
		if err != nil {
			return err
		}
		defer ctrl.Close()

		entry, err := ctrl.Latest(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("Neuestes Kapitel: %d %s\n", entry.Number, entry.Title)
		return nil
	},
}

var checkCmd = &cobra.Command{
	Use:   "check <current-latest>",
	Short: "List catalog chapters newer than a chapter number",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		current, err := strconv.Atoi(args[0])
		if err != nil || current < 0 {
			return fmt.Errorf("invalid chapter number %q", args[0])
		}

		ctrl, _, err := newController()
		if err != nil {
			return err
		}
		defer ctrl.Close()

		entries := ctrl.Updates.CheckForUpdate(cmd.Context(), current)
		if len(entries) == 0 {
			fmt.Println("Keine neuen Kapitel.")
			return nil
		}
		fmt.Println(components.NewCatalogList(entries, nil, false).View())
		return nil
	},
}

var notifyCmd = &cobra.Command{
	Use:   "notify <current-latest>",
	Short: "Email every catalog chapter newer than a chapter number",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		current, err := strconv.Atoi(args[0])
		if err != nil || current < 0 {
			return fmt.Errorf("invalid chapter number %q", args[0])
		}
		recipient, _ := cmd.Flags().GetString("recipient")

		ctrl, _, err := newController()
		if err != nil {
			return err
		}
		defer ctrl.Close()

		entries, _, err := ctrl.NotifySince(cmd.Context(), current, recipient)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Println("Keine neuen Kapitel.")
			return nil
		}
		for _, e := range entries {
			fmt.Printf("Benachrichtigt: Kapitel %d\n", e.Number)
		}
		return nil
	},
}

func init() {
	availableCmd.Flags().Int("limit", 0, "Show at most this many chapters")
	notifyCmd.Flags().String("recipient", "", "Send to this address instead of the configured recipient")
}
