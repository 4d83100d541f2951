package record

import (
	"errors"
	"io"

	"github.com/spf13/cobra"

	"pharmasync/cmd/client/cmd/cli"
)

var updateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Change fields of a record",
	Long: `update merges --data and --set into the current payload and stores the
result. Fields that are not mentioned keep their value.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := cli.FromContext(cmd.Context())
		if err != nil {
			return err
		}
		t, err := collection()
		if err != nil {
			return err
		}
		patch, err := cli.ParsePayload(dataFlag, setFlags)
		if err != nil {
			return err
		}
		if len(patch) == 0 {
			return errors.New("nothing to update, use --data or --set")
		}

		ctx := cmd.Context()
		env.App.Connect(ctx)
		current, err := env.App.Get(ctx, t, args[0])
		if err != nil {
			return err
		}
		payload := current.Payload.Clone()
		for k, v := range patch {
			payload[k] = v
		}

		rec, err := env.App.Update(ctx, t, current.ID, payload)
		if err != nil {
			return err
		}
		return env.Print(rec, func(w io.Writer) {
			env.Successf("updated %s", rec.ID)
			printRecord(w, rec)
		})
	},
}
