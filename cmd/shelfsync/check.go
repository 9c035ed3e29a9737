package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shelfsync/shelfsync/pkg/config"
	"github.com/shelfsync/shelfsync/pkg/updater"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check whether a content update is available",
	Long: `Check compares the local library version against the publisher's
manifest. It performs no writes and downloads nothing but the manifest.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}

		res, err := updater.CheckWithOptions(cmd.Context(),
			cfg.Content.DistDir, cfg.Remote.BaseURL, optionsFrom(cfg))
		if err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), renderCheck(res, cfg.Content.DistDir))
		return nil
	},
}

func optionsFrom(cfg *config.Config) updater.Options {
	opts := updater.DefaultOptions()
	opts.Timeouts.Manifest = cfg.ManifestTimeout()
	opts.Timeouts.Asset = cfg.AssetTimeout()
	opts.Timeouts.Media = cfg.MediaTimeout()
	opts.Enrichment = cfg.Enrichment.Enabled
	return opts
}
