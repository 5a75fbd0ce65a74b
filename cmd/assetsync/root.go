package main

import (
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "assetsync",
		Short:         "Content-addressed asset sync for S3, R2 and MinIO",
		Version:       versionString(),
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	flags := cmd.PersistentFlags()
	flags.SortFlags = false
	flags.StringP("config", "c", "", "config file (default ./assetsync.yaml)")
	flags.StringSlice("env-file", []string{".env"}, "dotenv files loaded before reading the environment")
	flags.String("log-level", "", "log level: debug, info, warn, error")
	flags.String("backend", "", "store backend: s3 or minio")
	flags.String("bucket", "", "target bucket")
	flags.String("endpoint", "", "store endpoint URL")
	flags.String("region", "", "signing region")

	cmd.AddCommand(
		newSyncCmd(),
		newPlanCmd(),
		newInventoryCmd(),
		newPublicAccessCmd(),
		newVersionCmd(),
	)
	return cmd
}
