// Package sale оформляет движения товара: продажи и возвраты.
package sale

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"pharmasync/cmd/client/cmd/cli"
	"pharmasync/internal/domain/entity"
)

var (
	items    []string
	customer string
	payment  string
	saleID   string
	reason   string
)

var SaleCmd = &cobra.Command{
	Use:   "sale",
	Short: "Register sales and returns",
}

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Register a sale and take the items out of local stock",
	Example: `  pharmasync sale create --item product=3f2a...,qty=2,price=2.5 --payment cash`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		env, err := cli.FromContext(cmd.Context())
		if err != nil {
			return err
		}
		payload, err := movement()
		if err != nil {
			return err
		}
		if customer != "" {
			payload["customer_id"] = customer
		}
		if payment != "" {
			payload["payment_method"] = payment
		}

		env.App.Connect(cmd.Context())
		rec, err := env.App.CreateSale(cmd.Context(), payload)
		if err != nil {
			return err
		}
		return env.Print(rec, func(w io.Writer) {
			total, _ := rec.Payload.Number("total")
			env.Successf("sale %s registered, total %.2f", rec.Payload.String("sale_number"), total)
			printSyncHint(w, rec)
		})
	},
}

var returnCmd = &cobra.Command{
	Use:   "return",
	Short: "Register a return and put the items back in local stock",
	RunE: func(cmd *cobra.Command, _ []string) error {
		env, err := cli.FromContext(cmd.Context())
		if err != nil {
			return err
		}
		payload, err := movement()
		if err != nil {
			return err
		}
		if saleID != "" {
			payload["sale_id"] = saleID
		}
		if reason != "" {
			payload["reason"] = reason
		}

		env.App.Connect(cmd.Context())
		rec, err := env.App.CreateReturn(cmd.Context(), payload)
		if err != nil {
			return err
		}
		return env.Print(rec, func(w io.Writer) {
			env.Successf("return %s registered", rec.Payload.String("return_number"))
			printSyncHint(w, rec)
		})
	},
}

func init() {
	for _, c := range []*cobra.Command{createCmd, returnCmd} {
		c.Flags().StringArrayVar(&items, "item", nil, "line item as product=<id>,qty=<n>[,price=<p>] (repeatable)")
		_ = c.MarkFlagRequired("item")
	}
	createCmd.Flags().StringVar(&customer, "customer", "", "customer id")
	createCmd.Flags().StringVar(&payment, "payment", "cash", "payment method (cash, card, mobile, credit)")
	returnCmd.Flags().StringVar(&saleID, "sale", "", "id of the original sale")
	returnCmd.Flags().StringVar(&reason, "reason", "", "reason for the return")

	SaleCmd.AddCommand(createCmd, returnCmd)
}

func movement() (entity.Payload, error) {
	lines := make([]any, 0, len(items))
	for _, s := range items {
		item, err := cli.ParseItem(s)
		if err != nil {
			return nil, err
		}
		lines = append(lines, item)
	}
	return entity.Payload{"items": lines}, nil
}

func printSyncHint(w io.Writer, rec *entity.Record) {
	if rec.Temporary {
		fmt.Fprintln(w, cli.Dim("  queued for the next sync as "+rec.ID))
	}
}
