package cmd

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/kerbaras/onepiece-offline/pkg/integrations"
)

var deleteCmd = &cobra.Command{
	Use:   "delete <chapter>...",
	Short: "Delete downloaded chapters",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		numbers, err := parseChapters(args)
		if err != nil {
			return err
		}
		ctrl, _, err := newController()
		if err != nil {
			return err
		}
		defer ctrl.Close()

		result := ctrl.DeleteChapters(cmd.Context(), numbers)
		for _, n := range result.Deleted {
			fmt.Printf("Kapitel %d gelöscht\n", n)
		}
		for _, f := range result.Failed {
			fmt.Printf("Kapitel %d: %s\n", f.Number, f.Reason)
		}
		if len(result.Failed) > 0 {
			return errors.Errorf("%d of %d chapters could not be deleted", len(result.Failed), len(numbers))
		}
		return nil
	},
}

var exportCmd = &cobra.Command{
	Use:   "export <chapter>...",
	Short: "Package downloaded chapters in another format",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		numbers, err := parseChapters(args)
		if err != nil {
			return err
		}
		formatFlag, _ := cmd.Flags().GetString("format")
		format, err := integrations.ParseFormat(formatFlag)
		if err != nil {
			return err
		}

		ctrl, _, err := newController()
		if err != nil {
			return err
		}
		defer ctrl.Close()

		for _, n := range numbers {
			path, err := ctrl.Downloader.EnsureFormat(cmd.Context(), n, format)
			if err != nil {
				return errors.WithMessagef(err, "chapter %d", n)
			}
			fmt.Println(path)
		}
		return nil
	},
}

func init() {
	exportCmd.Flags().String("format", "epub", "epub, cbz or pdf")
}
