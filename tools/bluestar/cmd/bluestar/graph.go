package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/domini04/bluestar/runtime/stages"
	"github.com/domini04/bluestar/runtime/version"
	"github.com/domini04/bluestar/runtime/workflow"
)

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Validate the workflow graph and print its transitions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Binding stages needs no collaborators, so no configuration is read.
		g, warnings, err := workflow.NewGraph(workflow.DefaultSpec(), stages.Build(stages.Deps{}))
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, line := range g.Describe() {
			fmt.Fprintln(out, line)
		}
		for _, w := range warnings {
			fmt.Fprintln(out, warnStyle.Render("warning: "+w))
		}
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), version.Get().String())
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
	rootCmd.AddCommand(versionCmd)
}
