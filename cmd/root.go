package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	logging "github.com/ipfs/go-log/v2"
	"github.com/joho/godotenv"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/xerrors"

	"zknet/internal/assets"
	"zknet/internal/config"
	"zknet/internal/platform"
	"zknet/internal/transfer"
	"zknet/internal/ui"
)

var log = logging.Logger("cmd")

var (
	cfg     *config.Config
	cfgFile string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "zknet",
	Short: "zknet - thin client for zknet networks",
	Long: `zknet joins a named network: it fetches the network configuration and
the walletshield executable from the distribution point, runs walletshield
with them and exposes a local WebSocket API for a front-end.

Usage:
  Join a network:        zknet connect <network_id>
  Run only the API:      zknet serve
  List joined networks:  zknet networks
  Show RPC endpoints:    zknet services <network_id>`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := initConfig(); err != nil {
			return err
		}

		var err error
		cfg, err = config.Load(viper.GetViper())
		if err != nil {
			return xerrors.Errorf("invalid configuration: %w", err)
		}

		if err := logging.SetLogLevel("*", cfg.LogLevel); err != nil {
			return xerrors.Errorf("setting log level: %w", err)
		}
		return nil
	},
}

func init() {
	// Add global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.zknet.yaml)")
	rootCmd.PersistentFlags().String("data-dir", "", "directory holding downloaded networks (default ~/.zknet)")
	rootCmd.PersistentFlags().String("url-network", "", "base URL of the network distribution point")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn or error")

	_ = viper.BindPFlag("data_dir", rootCmd.PersistentFlags().Lookup("data-dir"))
	_ = viper.BindPFlag("url_network", rootCmd.PersistentFlags().Lookup("url-network"))
	_ = viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))

	config.SetDefaults(viper.GetViper())

	// Set up viper environment variable support
	viper.SetEnvPrefix("ZKNET")
	viper.AutomaticEnv()
}

// initConfig reads .env, the config file and ENV variables
func initConfig() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return xerrors.Errorf("loading .env: %w", err)
	}

	if cfgFile != "" {
		// Use config file from the flag
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory
		home, err := os.UserHomeDir()
		if err != nil {
			log.Warnw("could not find home directory", "error", err)
			return nil
		}

		// Search config in home directory with name ".zknet" (without extension)
		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".zknet")
	}

	// If a config file is found, read it in
	err := viper.ReadInConfig()
	var notFound viper.ConfigFileNotFoundError
	switch {
	case err == nil:
		log.Infow("using config file", "path", viper.ConfigFileUsed())
	case errors.As(err, &notFound):
	default:
		if cfgFile != "" {
			return xerrors.Errorf("reading config file: %w", err)
		}
		log.Warnw("ignoring unreadable config file", "error", err)
	}
	return nil
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

// createContext creates a context that cancels on interrupt signals
func createContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())

	// Setup signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Fprintln(os.Stderr, "\nReceived interrupt signal, shutting down...")
		cancel()
	}()

	return ctx
}

// stderrIsTerminal reports whether progress bars on stderr are visible
func stderrIsTerminal() bool {
	fd := os.Stderr.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// createServices creates and wires up the services shared by the commands
func createServices() (*assets.Orchestrator, *ui.ConsoleUI, error) {
	platformArch, err := platform.Current()
	if err != nil {
		return nil, nil, err
	}

	client := transfer.NewHTTPClient(cfg.DialTimeout, cfg.HTTPTimeout)
	orchestrator := assets.NewOrchestrator(cfg, client, platformArch)
	consoleUI := ui.NewConsoleUI(os.Stdout, os.Stderr)

	return orchestrator, consoleUI, nil
}
