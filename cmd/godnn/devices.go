package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/djeday123/godnn/backend/cuda"
)

func newDevicesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List CUDA devices",
		RunE: func(cmd *cobra.Command, args []string) error {
			n := cuda.DeviceCount()
			if n == 0 {
				fmt.Println("no CUDA devices (driver missing or no GPU)")
				return nil
			}
			for i := 0; i < n; i++ {
				info, err := cuda.QueryDevice(i)
				if err != nil {
					return fmt.Errorf("device %d: %w", i, err)
				}
				fmt.Printf("%d: %s\n", i, info)
			}
			return nil
		},
	}
}
