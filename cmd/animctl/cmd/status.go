package cmd

import (
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status [operation_id]",
	Short: "Poll an animation operation once",
	Long:  `Ask the API for the current state of an animation operation. Polling advances the stored step, so a finished job is persisted by this call.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := newClient().Status(cmd.Context(), args[0])
		if err != nil {
			cmd.PrintErrf("Failed to fetch status: %v\n", err)
			return err
		}
		printStatus(cmd, res)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
