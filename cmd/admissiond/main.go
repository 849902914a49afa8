// admissiond 独立准入网关：把共享限流决策放在业务服务前面
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	root := &cobra.Command{
		Use:   "admissiond",
		Short: "Distributed request admission gateway",
		Long: "admissiond fronts HTTP traffic with shared rate limiting: " +
			"sliding window, token bucket, fixed window and adaptive algorithms " +
			"backed by Redis or in-process memory.",
		SilenceUsage: true,
	}

	var configPath string

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the admission gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg)
		},
	}
	serveCmd.Flags().StringVarP(&configPath, "config", "c", "configs/admissiond.yaml", "config file path")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("admissiond", version)
		},
	}

	root.AddCommand(serveCmd, versionCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
