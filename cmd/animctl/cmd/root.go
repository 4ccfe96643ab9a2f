package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"planner/pkg/poller"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "animctl",
	Short: "animctl watches and restarts assembly step animations",
	Long: `animctl talks to the plan API to inspect and drive the Veo animations of
assembly plan steps.

Common workflows:

  Check an operation once:
    animctl status operations/abc123

  Follow every running animation of a plan until it settles:
    animctl watch 42

  Start a new animation for a stored step and follow it:
    animctl regenerate 318 --wait

  Submit a free-form generation:
    animctl generate --prompt "Rotate the chair slowly" --image ./step.png

Configuration:
  ANIMCTL_URL    API endpoint (default: http://localhost:8080)`,
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
		}
		viper.SetConfigName(".animctl")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("ANIMCTL")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func newClient() *poller.Client {
	client := poller.NewClient(viper.GetString("url"))
	if timeout := viper.GetDuration("timeout"); timeout > 0 {
		client.HTTPClient.Timeout = timeout
	}
	return client
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.animctl.yaml)")

	rootCmd.PersistentFlags().String("url", "http://localhost:8080", "Plan API URL")
	_ = viper.BindPFlag("url", rootCmd.PersistentFlags().Lookup("url"))

	rootCmd.PersistentFlags().Duration("timeout", 30*time.Second, "HTTP timeout per request")
	_ = viper.BindPFlag("timeout", rootCmd.PersistentFlags().Lookup("timeout"))

	rootCmd.PersistentFlags().Duration("interval", poller.DefaultInterval, "Polling interval while waiting")
	_ = viper.BindPFlag("interval", rootCmd.PersistentFlags().Lookup("interval"))
}
