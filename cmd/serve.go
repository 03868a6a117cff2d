package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/xerrors"

	"zknet/internal/app"
	"zknet/internal/relay"
	"zknet/internal/ui"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run only the front-end API",
	Long: `Run the local WebSocket API without joining a network. Every request is
answered with {"ok":true,"echo":<request>}.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		r := relay.New()
		relayApp := app.NewRelayApp(r, nil)
		if err := relayApp.Start(cfg.APIListenAddress); err != nil {
			return xerrors.Errorf("starting API: %w", err)
		}

		ui.NewConsoleUI(cmd.OutOrStdout(), cmd.ErrOrStderr()).
			ShowMessage(fmt.Sprintf("API listening on ws://%s", r.Addr()))
		return relayApp.Serve(createContext())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
