package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/84hero/nft-dropbot/pkg/config"
	"github.com/ethereum/go-ethereum/log"
	"github.com/spf13/cobra"
)

const defaultConfigFile = "config.yaml"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.Error("Application failed", "err", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configFile string

	cmd := &cobra.Command{
		Use:   "dropbot",
		Short: "Mint an NFT to every active address once per block interval",
		Long: `
Watch new blocks, remember every address that sent a transaction, and at each
cadence boundary (block number divisible by BLOCK_INTERVAL) mint one NFT to each
of them.

Running without a subcommand is the same as "dropbot run".`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&configFile, "config", defaultConfigFile, "config file (optional, env vars work without it)")

	run := runCmd(&configFile)
	cmd.RunE = run.RunE
	cmd.AddCommand(run)
	cmd.AddCommand(deployCmd(&configFile))

	return cmd
}

func runCmd(configFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Track block senders and distribute NFTs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, *configFile)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			err = Run(ctx, cfg)
			if errors.Is(err, context.Canceled) {
				log.Info("Shutting down...")
				return nil
			}
			return err
		},
	}
}

func deployCmd(configFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "deploy",
		Short: "Deploy the NFT contract, print its address and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, *configFile)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return Deploy(ctx, cfg, cmd.OutOrStdout())
		},
	}
}

// loadConfig reads the config file, tolerating a missing default file, then sets up logging.
func loadConfig(cmd *cobra.Command, path string) (*config.Config, error) {
	if !cmd.Flags().Changed("config") && !config.FileExists(path) {
		path = ""
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := setupLogger(cfg.Log, os.Stderr); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
