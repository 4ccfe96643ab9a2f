package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"planner/pkg/poller"
)

var regenerateWait bool

var regenerateCmd = &cobra.Command{
	Use:     "regenerate [step_id]",
	Aliases: []string{"start"},
	Short:   "Start a new animation for a stored step",
	Long:    `Start a new Veo animation seeded with the step's stored illustration. The previous result is discarded; the earlier operation keeps running upstream but is no longer tracked.`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		stepID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil || stepID <= 0 {
			return fmt.Errorf("invalid step id %q", args[0])
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		p := newPoller(cmd, newClient(), poller.StepState{StepID: stepID, Status: poller.StatusNone})
		st, err := p.Start(ctx, stepID)
		if err != nil {
			return err
		}
		cmd.Printf("Started %s\n", st.OperationID)
		if !regenerateWait {
			return nil
		}
		return wait(ctx, p)
	},
}

func init() {
	regenerateCmd.Flags().BoolVarP(&regenerateWait, "wait", "w", false, "Follow the new operation until it finishes")
	rootCmd.AddCommand(regenerateCmd)
}
