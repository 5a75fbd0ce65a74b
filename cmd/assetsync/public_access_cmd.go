package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newPublicAccessCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "public-access",
		Short: "Apply a bucket policy granting anonymous read access",
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
			if err := client.SetPublicAccess(cmd.Context(), prefix); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "public read enabled on %s/%s*\n", client.Bucket(), prefix)
			return err
		},
	}
	cmd.Flags().String("prefix", "", "only grant access to keys under this prefix")
	return cmd
}
