package cmd

import (
	"fmt"
	"os"

	"github.com/ValentinKolb/liveQ/cmd/query"
	"github.com/ValentinKolb/liveQ/cmd/serve"
	"github.com/ValentinKolb/liveQ/cmd/util"
	"github.com/spf13/cobra"
)

const (
	Version = "0.3.1"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "liveq",
		Short: "query coalescing and live subscriptions for remote operations",
		Long: fmt.Sprintf(`liveQ (v%s)

A client-side execution layer for named remote operations written in Go,
coalescing concurrent identical queries and multicasting their results
to live subscribers.`, Version),
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of liveQ",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("liveQ v%s\n", Version)
		},
	}
)

func init() {
	// Add Commands
	RootCmd.AddCommand(serve.ServeCmd)
	RootCmd.AddCommand(query.QueryCommands)
	RootCmd.AddCommand(versionCmd)

	// Add Flags
	key := "serializer"
	RootCmd.PersistentFlags().String(key, "json", util.WrapString("serializer to use (json, gob, binary)"))
	key = "transport"
	RootCmd.PersistentFlags().String(key, "http", util.WrapString("transport to use (http, tcp, unix)"))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
