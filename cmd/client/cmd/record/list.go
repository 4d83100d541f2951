package record

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"pharmasync/cmd/client/cmd/cli"
	"pharmasync/internal/domain/entity"
)

var showDeleted bool

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the records of a collection",
	RunE: func(cmd *cobra.Command, _ []string) error {
		env, err := cli.FromContext(cmd.Context())
		if err != nil {
			return err
		}
		t, err := collection()
		if err != nil {
			return err
		}

		records, err := env.App.List(cmd.Context(), t, entity.Filter{ShowDeleted: showDeleted})
		if err != nil {
			return err
		}
		return env.Print(records, func(w io.Writer) { printList(w, records) })
	},
}

func init() {
	listCmd.Flags().BoolVar(&showDeleted, "deleted", false, "include records deleted locally but not yet pushed")
}

// labelKeys перебираются по порядку в поисках понятной подписи записи.
var labelKeys = []string{"name", "sale_number", "return_number", "patient_name"}

func printList(w io.Writer, records []entity.Record) {
	if len(records) == 0 {
		fmt.Fprintln(w, cli.Dim("no records"))
		return
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tLABEL\tUPDATED\tFLAGS")
	for _, r := range records {
		var label string
		for _, k := range labelKeys {
			if label = r.Payload.String(k); label != "" {
				break
			}
		}

		var flags string
		if r.Temporary {
			flags = cli.Warn("unsynced")
		}
		if r.IsDeleted() {
			flags = cli.Fail("deleted")
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.ID, label, r.UpdatedAt.Local().Format("2006-01-02 15:04"), flags)
	}
	_ = tw.Flush()
	fmt.Fprintf(w, "\n%d records\n", len(records))
}
