package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"pharmasync/cmd/client/cmd/cli"
	"pharmasync/internal/app/client/engine"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Prepare the local store and preload it from the server",
	Long: `init creates the local store and the client id if they do not exist,
checks the connection to the server and downloads every collection.

Changes that were never pushed are kept. Running init again refreshes the
local copy.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		env, err := cli.FromContext(cmd.Context())
		if err != nil {
			return err
		}
		app := env.App
		ctx := cmd.Context()

		if env.Format == cli.FormatText {
			fmt.Fprintln(env.Out, "client id:", cli.Bold(app.ClientID()))
		}

		if !app.Connect(ctx) {
			if env.Format == cli.FormatText {
				fmt.Fprintln(env.Out, cli.Warn("!"), "server unreachable, working offline until the next sync")
			}
			return nil
		}

		if env.Format == cli.FormatText {
			sub := app.Events().Subscribe(pullProgress(env))
			defer sub.Unsubscribe()
		}

		res, err := app.Preload(ctx)
		if err != nil {
			return fmt.Errorf("preload: %w", err)
		}

		return env.Print(res, func(w io.Writer) {
			fmt.Fprintf(w, "%s preloaded %d records in %s\n", cli.OK("✓"), res.Pulled, res.Duration.Round(time.Millisecond))
		})
	},
}

// pullProgress рисует строку на коллекцию, в терминале перерисовывая ее на месте.
func pullProgress(env *cli.Env) engine.Listener {
	live := env.Interactive()
	return func(e engine.Event) {
		switch e.Type {
		case engine.EventPullProgress:
			line := fmt.Sprintf("  [%d/%d] %s", e.Current, e.Total, e.Store.DisplayName())
			if live {
				fmt.Fprintf(env.Out, "\r\033[K%s", line)
				return
			}
			fmt.Fprintln(env.Out, line)
		case engine.EventPullComplete:
			if live {
				fmt.Fprintln(env.Out)
			}
		}
	}
}
