package query

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ValentinKolb/liveQ/lib/query"
	"github.com/spf13/cobra"
)

var (
	runCmd = &cobra.Command{
		Use:   "run [operation] [variables-json]",
		Short: "Executes a named query once and prints the result",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			vars, err := parseVariables(args)
			if err != nil {
				return err
			}

			result, err := coord.Execute(cmd.Context(), args[0], vars, query.RawShape())
			if err != nil {
				return err
			}

			fmt.Printf("%s\n", result.([]byte))
			return nil
		},
	}

	mutateCmd = &cobra.Command{
		Use:   "mutate [operation] [variables-json]",
		Short: "Executes a named mutation once and prints the result",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			vars, err := parseVariables(args)
			if err != nil {
				return err
			}

			payload, err := query.NewJSONCodec().Encode(vars)
			if err != nil {
				return err
			}

			result, err := mutationExec.PerformOperation(cmd.Context(), args[0], payload)
			if err != nil {
				return err
			}

			fmt.Printf("%s\n", result)
			return nil
		},
	}

	watchCmd = &cobra.Command{
		Use:   "watch [operation] [variables-json]",
		Short: "Subscribes to a named query and prints every result",
		Long:  "Subscribes to a named query and prints every result. The query is re-executed every --interval seconds until the command is interrupted.",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			vars, err := parseVariables(args)
			if err != nil {
				return err
			}

			interval, _ := cmd.Flags().GetInt("interval")
			if interval < 1 {
				return fmt.Errorf("interval must be at least 1 second")
			}

			sub, err := coord.Subscribe(args[0], vars, query.RawShape())
			if err != nil {
				return err
			}
			defer sub.Close()

			// Trigger the first execution
			sub.Reload()

			ticker := time.NewTicker(time.Duration(interval) * time.Second)
			defer ticker.Stop()

			sig := make(chan os.Signal, 1)
			signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

			for {
				select {
				case outcome, ok := <-sub.C():
					if !ok {
						return nil
					}
					if outcome.Err != nil {
						fmt.Printf("%s error: %v\n", time.Now().Format(time.RFC3339), outcome.Err)
					} else {
						fmt.Printf("%s %s\n", time.Now().Format(time.RFC3339), outcome.Value.([]byte))
					}
				case <-ticker.C:
					sub.Reload()
				case <-sig:
					return nil
				case <-cmd.Context().Done():
					return context.Cause(cmd.Context())
				}
			}
		},
	}
)

func init() {
	watchCmd.Flags().Int("interval", 5, "Seconds between re-executions of the watched query")
}
