package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "channel-sync",
	Short: "Channel sync microservice",
	Long:  "A microservice that reconciles payment-processor events against orders and keeps marketplace channels in sync with the canonical catalog.",
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
