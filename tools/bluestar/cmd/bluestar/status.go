package main

import (
	"github.com/spf13/cobra"

	"github.com/domini04/bluestar/runtime/statestore"
	"github.com/domini04/bluestar/runtime/workflow"
)

const (
	flagLimit  = "limit"
	flagStatus = "status"
)

var statusCmd = &cobra.Command{
	Use:   "status [RUN_ID]",
	Short: "Show a stored run, or list recent runs",
	Args:  cobra.MaximumNArgs(1),
	RunE:  showStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().Int(flagLimit, 20, "number of runs to list")
	statusCmd.Flags().String(flagStatus, "", "list only runs in this status: completed, halted or awaiting_input")
}

func showStatus(cmd *cobra.Command, args []string) error {
	ctx, sess, err := openSession(cmd.Context(), cmd, false)
	if err != nil {
		return err
	}
	defer sess.close()

	if len(args) == 1 {
		res, err := sess.engine.Status(ctx, args[0])
		if err != nil {
			return err
		}
		printResult(cmd.OutOrStdout(), res)
		return nil
	}

	limit, _ := cmd.Flags().GetInt(flagLimit)
	status, _ := cmd.Flags().GetString(flagStatus)
	runs, err := sess.engine.List(ctx, statestore.ListOptions{Status: workflow.Status(status), Limit: limit})
	if err != nil {
		return err
	}
	printRuns(cmd.OutOrStdout(), runs)
	return nil
}
