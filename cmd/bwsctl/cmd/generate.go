// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/danielhkuo/bestworst/experiment"
	"github.com/danielhkuo/bestworst/scaling"
)

var (
	generateGroup   string
	generateName    string
	generateRepeats int
	generateSetSize int
	generateSeed    uint64
	generateShow    bool
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Build and store a trial sequence",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, conn, err := openStore()
		if err != nil {
			return err
		}
		defer conn.Close()

		created, err := newService(s, scaling.DefaultRidge).CreateSequence(cmd.Context(), experiment.CreateSequenceParams{
			GroupKey: generateGroup,
			Name:     generateName,
			Repeats:  generateRepeats,
			SetSize:  generateSetSize,
			Seed:     generateSeed,
		})
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "sequence %d %q: %d trials of %d, seed %d\n",
			created.Info.SequenceID, created.Info.SequenceName,
			created.Info.NTrials, created.Info.SetSize, created.Seed)
		if len(created.Design.Leftover) > 0 {
			fmt.Fprintf(out, "leftover (dropped): %v\n", created.Design.Leftover)
		}
		if generateShow {
			for i, set := range created.Design.Trials {
				fmt.Fprintf(out, "%4d  %v\n", i, set)
			}
		}
		return nil
	},
}

func init() {
	generateCmd.Flags().StringVar(&generateGroup, "group", "", "stimulus group key")
	generateCmd.Flags().StringVar(&generateName, "name", "", "sequence name (default <group>-<seed>)")
	generateCmd.Flags().IntVar(&generateRepeats, "repeats", 3, "trials each stimulus appears in")
	generateCmd.Flags().IntVar(&generateSetSize, "set-size", 4, "stimuli per trial")
	generateCmd.Flags().Uint64Var(&generateSeed, "seed", 0, "random seed (0 draws one)")
	generateCmd.Flags().BoolVar(&generateShow, "show", false, "print every trial")
	generateCmd.MarkFlagRequired("group")
}
