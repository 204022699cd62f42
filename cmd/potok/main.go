// Command potok runs the task scheduler: the REST intake API, the periodic
// materialize/dispatch/recovery jobs, and the broker response consumer.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	root := &cobra.Command{
		Use:          "potok",
		Short:        "Distributed task scheduler with adaptive batch dispatch",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringP("config", "c", "", "path to potok.yaml")

	root.AddCommand(serveCmd())
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Println(version)
		},
	})

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
