package record

import (
	"io"

	"github.com/spf13/cobra"

	"pharmasync/cmd/client/cmd/cli"
)

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a record",
	Example: `  pharmasync record create -t categories --set name=Analgesics
  pharmasync record create -t products --data '{"name":"Paracetamol","price":2.5}' --set quantity_in_stock=40`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		env, err := cli.FromContext(cmd.Context())
		if err != nil {
			return err
		}
		t, err := collection()
		if err != nil {
			return err
		}
		payload, err := cli.ParsePayload(dataFlag, setFlags)
		if err != nil {
			return err
		}

		env.App.Connect(cmd.Context())
		rec, err := env.App.Create(cmd.Context(), t, payload)
		if err != nil {
			return err
		}
		return env.Print(rec, func(w io.Writer) {
			env.Successf("created %s", rec.ID)
			printRecord(w, rec)
		})
	},
}
