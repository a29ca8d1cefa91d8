// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/danielhkuo/bestworst/ingest"
)

var (
	ingestGroup       string
	ingestBucket      string
	ingestPrefix      string
	ingestCredentials string
	ingestDir         string
	ingestURLPrefix   string
	ingestDescription string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Register audio stimuli under a group key",
	Example: `  bwsctl ingest --group Guitar --bucket dataset-guitar --prefix Guitar/
  bwsctl ingest --group Piano --dir ./static/Piano --url-prefix /static/Piano`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if (ingestBucket == "") == (ingestDir == "") {
			return errors.New("exactly one of --bucket or --dir is required")
		}

		s, conn, err := openStore()
		if err != nil {
			return err
		}
		defer conn.Close()

		ctx := cmd.Context()
		var lister ingest.Lister
		description := ingestDescription
		if ingestBucket != "" {
			gcs, err := ingest.NewGCSLister(ctx, ingestBucket, ingestPrefix, ingestCredentials)
			if err != nil {
				return err
			}
			defer gcs.Close()
			lister = gcs
			if description == "" {
				description = "GCS object reference"
			}
		} else {
			lister = ingest.LocalLister{Root: ingestDir, URLPrefix: ingestURLPrefix}
			if description == "" {
				description = "Local file"
			}
		}

		report, err := ingest.Run(ctx, lister, s, ingestGroup, description)
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "group %s: %d added, %d already registered, %d skipped\n",
			ingestGroup, report.Added, report.Existing, report.Skipped)
		return nil
	},
}

func init() {
	ingestCmd.Flags().StringVar(&ingestGroup, "group", "", "group key stored as folder_path")
	ingestCmd.Flags().StringVar(&ingestBucket, "bucket", "", "GCS bucket to list")
	ingestCmd.Flags().StringVar(&ingestPrefix, "prefix", "", "object prefix inside the bucket")
	ingestCmd.Flags().StringVar(&ingestCredentials, "credentials", "", "service account key file (default: application default credentials)")
	ingestCmd.Flags().StringVar(&ingestDir, "dir", "", "local directory to walk")
	ingestCmd.Flags().StringVar(&ingestURLPrefix, "url-prefix", "", "URI prefix for files found with --dir")
	ingestCmd.Flags().StringVar(&ingestDescription, "description", "", "description stored with every resource")
	ingestCmd.MarkFlagRequired("group")
}
