package cmd

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"zknet/internal/reporter"
	"zknet/internal/transfer"
	"zknet/internal/ui"
)

// uploadCmd represents the upload command
var uploadCmd = &cobra.Command{
	Use:   "upload <url> <file>",
	Short: "Upload a file with HTTP PUT",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		consoleUI := ui.NewConsoleUI(cmd.OutOrStdout(), cmd.ErrOrStderr())
		name := filepath.Base(args[1])
		progress := consoleUI.NewProgress("Uploading " + name)
		client := transfer.NewHTTPClient(cfg.DialTimeout, cfg.HTTPTimeout)

		var observer transfer.ProgressObserver = progress
		if !stderrIsTerminal() {
			observer = transfer.Multi(progress, reporter.NewProgressReporter(name, 0))
		}

		resp, err := transfer.Upload(createContext(), client, args[0], args[1], &transfer.RequestOptions{Progress: observer})
		progress.Finish()
		if err != nil {
			return err
		}

		if resp != "" {
			consoleUI.ShowMessage(resp)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(uploadCmd)
}
