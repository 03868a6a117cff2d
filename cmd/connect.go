package cmd

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
	"golang.org/x/xerrors"

	"zknet/internal/app"
	"zknet/internal/relay"
)

type ConnectFlags struct {
	ListenAddress   string
	ReuseExecutable bool
	NoAPI           bool
}

var connectFlags ConnectFlags

// connectCmd represents the connect command
var connectCmd = &cobra.Command{
	Use:   "connect <network_id>",
	Short: "Join a network and run walletshield",
	Long: `Join a network. This will:

1. Start the local front-end API (unless --no-api is given)
2. Download client.toml, services.json and walletshield for the network
3. Run walletshield with the downloaded configuration
4. Stream its output until it exits or you press Ctrl+C`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runConnectApp(args[0], &connectFlags)
	},
}

func init() {
	rootCmd.AddCommand(connectCmd)

	connectCmd.Flags().StringVarP(&connectFlags.ListenAddress, "listen", "l", "", "walletshield listen address (default :7071)")
	connectCmd.Flags().String("api-listen", "", "front-end API listen address (default 127.0.0.1:7070)")
	connectCmd.Flags().BoolVar(&connectFlags.ReuseExecutable, "reuse-binary", false, "keep an already downloaded walletshield")
	connectCmd.Flags().BoolVar(&connectFlags.NoAPI, "no-api", false, "do not start the front-end API")

	_ = viper.BindPFlag("walletshield_listen_address", connectCmd.Flags().Lookup("listen"))
	_ = viper.BindPFlag("api_listen_address", connectCmd.Flags().Lookup("api-listen"))
}

// runConnectApp creates and runs the connect application, next to the API
// relay when enabled
func runConnectApp(networkID string, flags *ConnectFlags) error {
	orchestrator, consoleUI, err := createServices()
	if err != nil {
		return err
	}

	opts := &app.ConnectOptions{
		NetworkID:       networkID,
		ListenAddress:   cfg.WalletshieldListenAddress,
		ReuseExecutable: flags.ReuseExecutable,
		LogProgress:     !stderrIsTerminal(),
	}
	connectApp := app.NewConnectApp(cfg, orchestrator, consoleUI)

	ctx, cancel := context.WithCancel(createContext())
	defer cancel()

	if flags.NoAPI {
		return connectApp.Run(ctx, opts)
	}

	relayApp := app.NewRelayApp(relay.New(), nil)
	if err := relayApp.Start(cfg.APIListenAddress); err != nil {
		return xerrors.Errorf("starting API: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return relayApp.Serve(gctx)
	})
	g.Go(func() error {
		defer cancel()
		return connectApp.Run(gctx, opts)
	})
	return g.Wait()
}
