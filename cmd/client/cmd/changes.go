package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"pharmasync/cmd/client/cmd/cli"
	"pharmasync/internal/domain/change"
)

var changesCmd = &cobra.Command{
	Use:   "changes",
	Short: "List changes waiting for the server",
	RunE: func(cmd *cobra.Command, _ []string) error {
		env, err := cli.FromContext(cmd.Context())
		if err != nil {
			return err
		}

		changes, err := env.App.Changes(cmd.Context())
		if err != nil {
			return err
		}

		return env.Print(changes, func(w io.Writer) {
			printChanges(w, changes)
		})
	},
}

func printChanges(w io.Writer, changes []change.Change) {
	if len(changes) == 0 {
		fmt.Fprintln(w, cli.OK("✓"), "nothing to push")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SEQ\tTYPE\tACTION\tENTITY\tSTATUS\tRETRIES\tERROR")
	for _, c := range changes {
		status := string(c.Status)
		if c.Status == change.StatusFailed {
			status = cli.Fail(status)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%d\t%s\n",
			c.Seq, c.EntityType, c.Action, c.EntityID, status, c.RetryCount, c.LastError)
	}
	_ = tw.Flush()
}
