package cmd

import (
	"github.com/spf13/cobra"

	"planner/pkg/poller"
)

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorBold   = "\033[1m"
	colorDim    = "\033[2m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
)

func statusIcon(status string) string {
	switch status {
	case poller.StatusSucceeded:
		return colorGreen + "✓" + colorReset
	case poller.StatusFailed:
		return colorRed + "✗" + colorReset
	case poller.StatusProcessing, poller.StatusPending:
		return colorYellow + "⏳" + colorReset
	default:
		return "•"
	}
}

func printStatus(cmd *cobra.Command, res *poller.StatusResponse) {
	cmd.Printf("%s %sAnimation%s\n", statusIcon(res.Status), colorBold, colorReset)
	cmd.Println("──────────────────────────────")
	cmd.Printf("%sOperation:%s  %s\n", colorDim, colorReset, res.OperationID)
	cmd.Printf("%sStatus:%s     %s\n", colorDim, colorReset, res.Status)
	if res.AnimationURL != nil {
		cmd.Printf("%sURL:%s        %s\n", colorDim, colorReset, *res.AnimationURL)
	}
	if res.AnimationError != nil {
		cmd.Printf("%sError:%s      %s%s%s\n", colorDim, colorReset, colorRed, *res.AnimationError, colorReset)
	}
}

func printStep(cmd *cobra.Command, s poller.StepState) {
	line := s.Status
	switch {
	case s.Status == poller.StatusSucceeded && s.AnimationURL != "":
		line += "  " + s.AnimationURL
	case s.Status == poller.StatusFailed && s.Error != "":
		line += "  " + colorRed + s.Error + colorReset
	case s.OperationID != "":
		line += "  " + colorDim + s.OperationID + colorReset
	}
	cmd.Printf("%s step %d %s%s%s  %s\n", statusIcon(s.Status), s.StepID, colorBold, s.Title, colorReset, line)
}
