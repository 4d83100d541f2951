package record

import (
	"io"

	"github.com/spf13/cobra"

	"pharmasync/cmd/client/cmd/cli"
)

var getCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Show one record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := cli.FromContext(cmd.Context())
		if err != nil {
			return err
		}
		t, err := collection()
		if err != nil {
			return err
		}

		rec, err := env.App.Get(cmd.Context(), t, args[0])
		if err != nil {
			return err
		}
		return env.Print(rec, func(w io.Writer) { printRecord(w, rec) })
	},
}
