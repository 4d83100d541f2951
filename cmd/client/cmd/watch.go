package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"pharmasync/cmd/client/cmd/cli"
	"pharmasync/internal/app/client/engine"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Keep syncing in the foreground until interrupted",
	Long: `watch probes the server periodically and syncs on startup, on every
reconnect and at the configured interval. Stop it with Ctrl+C.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		env, err := cli.FromContext(cmd.Context())
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		sub := env.App.Events().SubscribeContext(ctx, printEvent(env))
		defer sub.Unsubscribe()

		if err := env.App.Run(ctx); err != nil && ctx.Err() == nil {
			return err
		}
		return nil
	},
}

func printEvent(env *cli.Env) engine.Listener {
	if env.Format != cli.FormatText {
		enc := json.NewEncoder(env.Out)
		return func(e engine.Event) { _ = enc.Encode(e) }
	}

	return func(e engine.Event) {
		ts := cli.Dim(e.Timestamp.Format("15:04:05"))
		switch e.Type {
		case engine.EventSyncStart:
			fmt.Fprintln(env.Out, ts, "sync started")
		case engine.EventSyncComplete:
			r := e.Results
			if r == nil {
				r = &engine.Results{}
			}
			fmt.Fprintln(env.Out, ts, cli.OK("sync complete"),
				fmt.Sprintf("pushed=%d failed=%d retrying=%d held=%d pulled=%d",
					r.Pushed, r.Failed, r.Retrying, r.HeldBack, r.Pulled))
		case engine.EventSyncError:
			fmt.Fprintln(env.Out, ts, cli.Fail("sync failed:"), e.Error)
		}
	}
}

