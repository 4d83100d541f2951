package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"pharmasync/cmd/client/cmd/cli"
	"pharmasync/internal/app/client/engine"
	"pharmasync/internal/domain/change"
	"pharmasync/internal/domain/entity"
)

type statusOutput struct {
	engine.Status `yaml:",inline"`
	ClientID       string       `json:"client_id" yaml:"client_id"`
	Changes        change.Stats `json:"changes" yaml:"changes"`
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show connectivity, queue and local store counts",
	RunE: func(cmd *cobra.Command, _ []string) error {
		env, err := cli.FromContext(cmd.Context())
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		env.App.Connect(ctx)

		st, err := env.App.Status(ctx)
		if err != nil {
			return err
		}
		stats, err := env.App.Stats(ctx)
		if err != nil {
			return err
		}

		out := statusOutput{Status: *st, ClientID: env.App.ClientID(), Changes: stats}
		return env.Print(out, func(w io.Writer) {
			printStatus(w, out, time.Now())
		})
	},
}

func printStatus(w io.Writer, s statusOutput, now time.Time) {
	conn := cli.OK("online")
	if !s.Online {
		conn = cli.Warn("offline")
	}

	fmt.Fprintf(w, "connection:  %s\n", conn)
	fmt.Fprintf(w, "state:       %s\n", s.State)
	fmt.Fprintf(w, "last sync:   %s\n", cli.Since(s.LastSync, now))
	fmt.Fprintf(w, "pending:     %d", s.Changes.Pending)
	if s.Changes.Failed > 0 {
		fmt.Fprintf(w, "  %s", cli.Fail(fmt.Sprintf("(%d failed)", s.Changes.Failed)))
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STORE\tTOTAL\tUNSYNCED\tDELETED")
	for _, t := range entity.All() {
		c := s.Stores[t]
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\n", t.DisplayName(), c.Total, c.Unsynced, c.Deleted)
	}
	_ = tw.Flush()
}
