package cmd

import (
	"fmt"
	"strconv"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/kerbaras/onepiece-offline/pkg/data"
	"github.com/kerbaras/onepiece-offline/pkg/integrations"
	"github.com/kerbaras/onepiece-offline/pkg/services"
)

var downloadCmd = &cobra.Command{
	Use:   "download <chapter>...",
	Short: "Download chapters",
	Long:  "Download chapters and package them in the configured format. Chapters already on disk are skipped unless --force is set.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		numbers, err := parseChapters(args)
		if err != nil {
			return err
		}
		force, _ := cmd.Flags().GetBool("force")
		formatFlag, _ := cmd.Flags().GetString("format")

		ctrl, log, err := newController()
		if err != nil {
			return err
		}
		defer ctrl.Close()
		if err := ctrl.Updates.Refresh(cmd.Context()); err != nil {
			log.Err(err).Warn("catalog unavailable, titles may be missing")
		}

		go func() {
			for progress := range ctrl.Downloader.GetProgressChannel() {
				if progress.Status == services.StatusDownloading && progress.TotalPages > 0 {
					fmt.Printf("  Kapitel %d: %d/%d Seiten\n", progress.ChapterNumber, progress.CurrentPage, progress.TotalPages)
				}
			}
		}()

		failed := 0
		for _, n := range numbers {
			var chapter *data.DownloadedChapter
			if force {
				chapter, err = ctrl.Downloader.Redownload(cmd.Context(), n)
			} else {
				chapter, err = ctrl.Downloader.DownloadChapter(cmd.Context(), n)
			}
			if err != nil {
				failed++
				fmt.Printf("Kapitel %d: %s\n", n, describe(err))
				continue
			}
			path := chapter.PackagePath
			if formatFlag != "" {
				format, err := integrations.ParseFormat(formatFlag)
				if err != nil {
					return err
				}
				if path, err = ctrl.Downloader.EnsureFormat(cmd.Context(), n, format); err != nil {
					return err
				}
			}
			fmt.Printf("Kapitel %d (%d Seiten): %s\n", n, len(chapter.Pages), path)
		}
		if failed > 0 {
			return errors.Errorf("%d of %d chapters failed", failed, len(numbers))
		}
		return nil
	},
}

func init() {
	downloadCmd.Flags().BoolP("force", "f", false, "Download again even if the chapter is on disk")
	downloadCmd.Flags().String("format", "", "Also package the chapter as epub, cbz or pdf")
}

func parseChapters(args []string) ([]int, error) {
	numbers := make([]int, 0, len(args))
	for _, arg := range args {
		n, err := strconv.Atoi(arg)
		if err != nil || n <= 0 {
			return nil, errors.Errorf("invalid chapter number %q", arg)
		}
		numbers = append(numbers, n)
	}
	return numbers, nil
}

// describe turns a pipeline error into a short user-facing reason.
func describe(err error) string {
	switch {
	case errors.Is(err, data.ErrNotAvailable):
		return "nicht verfügbar"
	case errors.Is(err, data.ErrNotFound):
		return "nicht heruntergeladen"
	case errors.Is(err, data.ErrTransientNetwork):
		return "Netzwerkfehler: " + err.Error()
	default:
		return err.Error()
	}
}
