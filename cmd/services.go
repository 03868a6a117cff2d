package cmd

import (
	"github.com/spf13/cobra"

	"zknet/internal/assets"
)

type ServicesFlags struct {
	Testnets bool
	Search   string
}

var servicesFlags ServicesFlags

// servicesCmd represents the services command
var servicesCmd = &cobra.Command{
	Use:   "services <network_id>",
	Short: "Show the RPC endpoints of a joined network",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		orchestrator, consoleUI, err := createServices()
		if err != nil {
			return err
		}

		paths, err := orchestrator.Paths(args[0])
		if err != nil {
			return err
		}
		svc, err := assets.ReadServices(paths)
		if err != nil {
			return err
		}

		consoleUI.ShowEndpoints(svc.Filter(servicesFlags.Testnets, servicesFlags.Search), cfg.WalletshieldListenAddress)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(servicesCmd)

	servicesCmd.Flags().BoolVar(&servicesFlags.Testnets, "testnets", false, "include testnet endpoints")
	servicesCmd.Flags().StringVarP(&servicesFlags.Search, "search", "s", "", "only show chains or networks containing this text")
}
