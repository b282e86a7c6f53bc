// Package cmd implements CLI commands using cobra framework.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"firestige.xyz/rohc/internal/config"
	"firestige.xyz/rohc/internal/log"
)

// NewRootCmd builds the rohc command tree.
func NewRootCmd() *cobra.Command {
	var configFile string

	root := &cobra.Command{
		Use:   "rohc",
		Short: "ROHC decompressor for RTP, UDP, UDP-Lite and IP-only flows",
		Long: `rohc decompresses RObust Header Compression (RFC 3095) channels.

It reads ROHC packets from a capture file or a UDP socket, keeps one
decompression context per CID and writes the rebuilt IP packets to a
pcap file, together with an optional per-CID YAML report.`,
		Version:       "0.1.0",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configFile, "config", "c", "",
		"config file path (defaults only when empty)")

	load := func() (*config.GlobalConfig, error) {
		cfg, err := config.Load(configFile)
		if err != nil {
			return nil, err
		}
		if err := log.Init(cfg.Log); err != nil {
			return nil, fmt.Errorf("failed to init logger: %w", err)
		}
		return cfg, nil
	}

	root.AddCommand(newDecodeCmd(load), newListenCmd(load), newValidateCmd(load))
	return root
}

// Execute runs the command line. This is called by main.main().
func Execute() error {
	return NewRootCmd().Execute()
}

type loader func() (*config.GlobalConfig, error)
