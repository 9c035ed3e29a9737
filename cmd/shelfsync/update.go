package main

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/shelfsync/shelfsync/pkg/config"
	"github.com/shelfsync/shelfsync/pkg/progress"
	"github.com/shelfsync/shelfsync/pkg/updater"
)

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Download and apply the latest published content",
	Long: `Update fetches the publisher's manifest and, when its version differs
from the local library, downloads the new content into a staging directory
and swaps it in atomically. Interrupting the command leaves the current
library untouched.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		sink, finish := progressSink()
		session := updater.NewSession(cfg.Content.DistDir, cfg.Remote.BaseURL, optionsFrom(cfg))
		res, err := session.Run(ctx, sink)
		finish()
		if err != nil {
			return err
		}

		if !res.Updated {
			fmt.Fprintf(cmd.OutOrStdout(), "Up to date (version %s)\n", versionOrNone(res.LocalVersion))
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Updated %s -> %s\n", versionOrNone(res.LocalVersion), res.RemoteVersion)
		return nil
	},
}

// progressSink returns a sink rendering to a pterm progress bar on a
// terminal, or plain status lines otherwise. The sink never fails; the
// engine swallows sink panics anyway.
func progressSink() (progress.Sink, func()) {
	if !stdoutIsTerminal() {
		return func(u progress.Update) {
			if u.Message == "" {
				return
			}
			if u.Determinate {
				fmt.Printf("[%3.0f%%] %s\n", u.Percent, u.Message)
				return
			}
			fmt.Println(u.Message)
		}, func() {}
	}

	bar, _ := pterm.DefaultProgressbar.WithTotal(100).WithRemoveWhenDone(true).Start()
	last := 0
	sink := func(u progress.Update) {
		if u.Message != "" {
			bar.UpdateTitle(u.Message)
		}
		if !u.Determinate {
			return
		}
		if step := int(u.Percent) - last; step > 0 {
			bar.Add(step)
			last += step
		}
	}
	finish := func() {
		_, _ = bar.Stop()
	}
	return sink, finish
}
