package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"planner/pkg/poller"
)

var watchCmd = &cobra.Command{
	Use:   "watch [plan_id]",
	Short: "Follow the animations of a plan until none are running",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		planID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil || planID <= 0 {
			return fmt.Errorf("invalid plan id %q", args[0])
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		client := newClient()
		plan, err := client.Plan(ctx, planID)
		if err != nil {
			cmd.PrintErrf("Failed to load plan: %v\n", err)
			return err
		}

		p := newPoller(cmd, client, poller.FromPlan(plan)...)
		cmd.Printf("%sPlan %d:%s %s\n", colorBold, plan.Plan.ID, colorReset, plan.Plan.Request)
		for _, s := range p.Snapshot() {
			printStep(cmd, s)
		}
		return wait(ctx, p)
	},
}

func newPoller(cmd *cobra.Command, client *poller.Client, steps ...poller.StepState) *poller.Poller {
	p := poller.New(client, steps...)
	if interval := viper.GetDuration("interval"); interval > 0 {
		p.Interval = interval
	}
	p.OnUpdate = func(s poller.StepState) { printStep(cmd, s) }
	return p
}

func wait(ctx context.Context, p *poller.Poller) error {
	if err := p.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
