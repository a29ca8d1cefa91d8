// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/danielhkuo/bestworst/scaling"
)

var (
	rankParticipant string
	rankSequence    int64
	rankRidge       float64
	fitTimeout      time.Duration
)

var rankCmd = &cobra.Command{
	Use:   "rank",
	Short: "Fit and store a participant's final ranking",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, conn, err := openStore()
		if err != nil {
			return err
		}
		defer conn.Close()

		final, err := newService(s, rankRidge).Finalize(cmd.Context(), rankParticipant, rankSequence)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, final.Summary)

		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "RANK\tID\tSCORE\tSTD ERR\tFILE")
		for _, rs := range final.Ranking.Stimuli {
			fmt.Fprintf(tw, "%d\t%d\t%.4f\t%.4f\t%s\n",
				rs.Rank, rs.ID, rs.Score, rs.StdError, final.Resources[rs.ID].Filename)
		}
		return tw.Flush()
	},
}

func init() {
	rankCmd.Flags().StringVar(&rankParticipant, "participant", "", "participant name")
	rankCmd.Flags().Int64Var(&rankSequence, "sequence", 0, "sequence id")
	rankCmd.Flags().Float64Var(&rankRidge, "ridge", scaling.DefaultRidge, "L2 penalty (0 for plain maximum likelihood)")
	rankCmd.Flags().DurationVar(&fitTimeout, "fit-timeout", 10*time.Second, "solver time limit")
	rankCmd.MarkFlagRequired("participant")
	rankCmd.MarkFlagRequired("sequence")
}
