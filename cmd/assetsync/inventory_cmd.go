package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/input-output-hk/catalyst-forge-libs/assetsync/internal/report"
)

func newInventoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inventory",
		Short: "List remote objects with sizes and totals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd, false)
			if err != nil {
				return err
			}
			prefix, _ := cmd.Flags().GetString("prefix")

			client, err := newClient(cmd.Context(), a)
			if err != nil {
				return err
			}
			objects, err := client.Inventory(cmd.Context(), prefix)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
				return report.Encode(out, objects)
			}

			var total int64
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			for _, o := range objects {
				total += o.Size
				fmt.Fprintf(tw, "%s\t%s\t%s\n", o.Key, humanize.IBytes(uint64(o.Size)), o.LastModified.Format(time.DateTime))
			}
			_ = tw.Flush()
			fmt.Fprintf(out, "%d objects, %s\n", len(objects), humanize.IBytes(uint64(total)))
			return nil
		},
	}
	cmd.Flags().String("prefix", "", "only list keys under this prefix")
	cmd.Flags().Bool("json", false, "print objects as JSON")
	return cmd
}
