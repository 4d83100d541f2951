// Package record содержит общие CRUD команды для всех коллекций.
package record

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"pharmasync/cmd/client/cmd/cli"
	"pharmasync/internal/domain/entity"
)

var (
	typeFlag string
	dataFlag string
	setFlags []string
)

var RecordCmd = &cobra.Command{
	Use:   "record",
	Short: "Create, read, update and delete records of any collection",
	Long: `Records are addressed by collection and id. Collections: ` + typeList() + `.

Payload fields come from --data '{"name":"..."}' and repeated --set key=value.
Values that look like JSON keep their type, so quote strings of digits:
--set barcode='"0779"'.`,
}

func init() {
	RecordCmd.PersistentFlags().StringVarP(&typeFlag, "type", "t", "", "collection ("+typeList()+")")
	_ = RecordCmd.MarkPersistentFlagRequired("type")

	for _, c := range []*cobra.Command{createCmd, updateCmd} {
		c.Flags().StringVar(&dataFlag, "data", "", "payload as a JSON object")
		c.Flags().StringArrayVar(&setFlags, "set", nil, "payload field as key=value (repeatable)")
	}

	RecordCmd.AddCommand(createCmd, getCmd, listCmd, updateCmd, deleteCmd)
}

func typeList() string {
	names := make([]string, 0, len(entity.All()))
	for _, t := range entity.All() {
		names = append(names, string(t))
	}
	return strings.Join(names, ", ")
}

func collection() (entity.Type, error) {
	return entity.Parse(typeFlag)
}

func printRecord(w io.Writer, rec *entity.Record) {
	id := rec.ID
	if rec.Temporary {
		id += " " + cli.Warn("(not synced)")
	}
	fmt.Fprintf(w, "%s %s\n", cli.Bold(rec.Type.DisplayName()), id)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, k := range slices.Sorted(maps.Keys(rec.Payload)) {
		fmt.Fprintf(tw, "  %s\t%v\n", k, rec.Payload[k])
	}
	_ = tw.Flush()
}
