package cmd

import (
	"github.com/spf13/cobra"
)

// networksCmd represents the networks command
var networksCmd = &cobra.Command{
	Use:   "networks",
	Short: "List networks joined before",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		orchestrator, consoleUI, err := createServices()
		if err != nil {
			return err
		}

		networks, err := orchestrator.ListNetworks()
		if err != nil {
			return err
		}
		if len(networks) == 0 {
			consoleUI.ShowMessage("No networks joined yet.")
			return nil
		}
		for _, n := range networks {
			consoleUI.ShowMessage(n)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(networksCmd)
}
