package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:           "godnn",
		Short:         "Vendor-accelerated DNN operators",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newDevicesCmd())
	root.AddCommand(newLRNCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "godnn:", err)
		os.Exit(1)
	}
}
