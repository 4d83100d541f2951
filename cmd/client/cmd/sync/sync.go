// Package sync дает команды сессии синхронизации и работы с упавшими изменениями.
package sync

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"pharmasync/cmd/client/cmd/cli"
	"pharmasync/internal/app/client/engine"
)

var (
	full        bool
	pushOnly    bool
	retryFailed bool
	discard     int64
)

var SyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Push queued changes and refresh the local collections",
	Long: `sync pushes every queued change in order, then downloads all collections
from the server. Records that still have unpushed changes are kept as they are.

--full replaces the local collections with the server's, keeping only records
created offline that were never pushed.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		env, err := cli.FromContext(cmd.Context())
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		app := env.App

		switch {
		case discard > 0:
			if err := app.Discard(ctx, discard); err != nil {
				return err
			}
			env.Successf("change %d discarded", discard)
			return nil
		case retryFailed:
			n, err := app.RetryFailed(ctx)
			if err != nil {
				return err
			}
			env.Successf("%d failed changes queued again", n)
		}

		if full && pushOnly {
			return errors.New("--full and --push-only are mutually exclusive")
		}

		app.Connect(ctx)
		if env.Format == cli.FormatText {
			sub := app.Events().Subscribe(progress(env))
			defer sub.Unsubscribe()
		}

		var res *engine.Result
		if full {
			res, err = app.Preload(ctx)
		} else {
			res, err = app.Sync(ctx, engine.Options{Reason: engine.ReasonManual, PushOnly: pushOnly})
		}
		if errors.Is(err, engine.ErrOffline) {
			return fmt.Errorf("%w: changes stay queued until the server is reachable", err)
		}
		if err != nil {
			return err
		}

		return env.Print(res, func(w io.Writer) { printResult(w, res) })
	},
}

func init() {
	SyncCmd.Flags().BoolVar(&full, "full", false, "replace local collections with the server's")
	SyncCmd.Flags().BoolVar(&pushOnly, "push-only", false, "push queued changes without downloading")
	SyncCmd.Flags().BoolVar(&retryFailed, "retry-failed", false, "requeue failed changes before syncing")
	SyncCmd.Flags().Int64Var(&discard, "discard", 0, "drop the queued change with this sequence number and exit")
}

func progress(env *cli.Env) engine.Listener {
	live := env.Interactive()
	return func(e engine.Event) {
		var line string
		switch e.Type {
		case engine.EventPushProgress:
			line = fmt.Sprintf("  push [%d/%d]", e.Current, e.Total)
		case engine.EventPullProgress:
			line = fmt.Sprintf("  pull [%d/%d] %s", e.Current, e.Total, e.Store.DisplayName())
		case engine.EventPushComplete, engine.EventPullComplete:
			if live {
				fmt.Fprintln(env.Out)
			}
			return
		default:
			return
		}
		if live {
			fmt.Fprintf(env.Out, "\r\033[K%s", line)
			return
		}
		fmt.Fprintln(env.Out, line)
	}
}

func printResult(w io.Writer, res *engine.Result) {
	mark := cli.OK("✓")
	if res.Failed > 0 {
		mark = cli.Warn("!")
	}
	fmt.Fprintf(w, "%s pushed %d, pulled %d in %s\n", mark, res.Pushed, res.Pulled, res.Duration.Round(time.Millisecond))
	if res.Retrying > 0 {
		fmt.Fprintf(w, "  %d changes will be retried\n", res.Retrying)
	}
	if res.HeldBack > 0 {
		fmt.Fprintf(w, "  %d changes wait for records they reference\n", res.HeldBack)
	}
	for _, ce := range res.Errors {
		fmt.Fprintf(w, "  %s #%d %s %s %s: %s\n", cli.Fail(ce.Class), ce.Seq, ce.Action, ce.EntityType, ce.EntityID, ce.Error)
	}
	if res.Failed > 0 {
		fmt.Fprintln(w, cli.Dim("  inspect with `pharmasync changes`, then `sync --retry-failed` or `sync --discard <seq>`"))
	}
}
