package record

import (
	"github.com/spf13/cobra"

	"pharmasync/cmd/client/cmd/cli"
)

var deleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a record",
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

		env.App.Connect(cmd.Context())
		if err := env.App.Delete(cmd.Context(), t, args[0]); err != nil {
			return err
		}
		env.Successf("deleted %s %s", t, args[0])
		return nil
	},
}
