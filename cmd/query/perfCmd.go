package query

import (
	"fmt"
	"sync"
	"time"

	"github.com/ValentinKolb/liveQ/cmd/util"
	libquery "github.com/ValentinKolb/liveQ/lib/query"
	vmetrics "github.com/VictoriaMetrics/metrics"
	gometrics "github.com/rcrowley/go-metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	perfTestCmd = &cobra.Command{
		Use:     "perf",
		Short:   "Performance testing tool for liveQ servers",
		Long:    "",
		RunE:    runPerf,
		PreRunE: processPerfConfig,
	}
	perfNumThreads = 10
	perfRequests   = 1000
	perfKeySpread  = 100
	perfOperation  = "echo"
)

func init() {
	// add flags
	key := "threads"
	perfTestCmd.Flags().Int(key, 10, util.WrapString("Number of threads to use for the benchmark"))
	key = "requests"
	perfTestCmd.Flags().Int(key, 1000, util.WrapString("Number of requests each thread performs"))
	key = "spread"
	perfTestCmd.Flags().Int(key, 100, util.WrapString("How many distinct variable sets to use. Lower values mean more concurrent identical requests and therefore more coalescing"))
	key = "operation"
	perfTestCmd.Flags().String(key, "echo", util.WrapString("The named query to benchmark"))
}

func processPerfConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// Read the configuration from the command line flags and environment variables
	perfNumThreads = viper.GetInt("threads")
	perfRequests = viper.GetInt("requests")
	perfKeySpread = viper.GetInt("spread")
	perfOperation = viper.GetString("operation")

	return nil
}

func runPerf(cmd *cobra.Command, _ []string) error {

	fmt.Println("Performance testing tool for liveQ servers")

	// Print configuration
	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Println(util.GetClientConfig().String())
	fmt.Printf("Threads:   %d\n", perfNumThreads)
	fmt.Printf("Requests:  %d per thread\n", perfRequests)
	fmt.Printf("Spread:    %d distinct variable sets\n", perfKeySpread)
	fmt.Printf("Operation: %s\n", perfOperation)
	fmt.Println()

	fmt.Println("starting test...")

	// Snapshot the coalescing counters so only this run is reported
	started := vmetrics.GetOrCreateCounter(`liveq_executions_started_total`)
	joined := vmetrics.GetOrCreateCounter(`liveq_executions_joined_total`)
	startedBefore := started.Get()
	joinedBefore := joined.Get()

	timer := gometrics.NewTimer()

	var wg sync.WaitGroup
	wg.Add(perfNumThreads)

	begin := time.Now()

	for t := 0; t < perfNumThreads; t++ {
		go func(thread int) {
			defer wg.Done()
			for i := 0; i < perfRequests; i++ {
				vars := map[string]any{"n": (thread*perfRequests + i) % perfKeySpread}
				timer.Time(func() {
					_, err := coord.Execute(cmd.Context(), perfOperation, vars, libquery.RawShape())
					if err != nil {
						fmt.Printf("(perf) - error executing %s: %v\n", perfOperation, err)
					}
				})
			}
		}(t)
	}

	wg.Wait()
	elapsed := time.Since(begin)

	// Print results
	total := int64(perfNumThreads * perfRequests)
	snapshot := timer.Snapshot()
	ps := snapshot.Percentiles([]float64{0.5, 0.95, 0.99})

	fmt.Println()
	fmt.Printf("requests:     %d in %v (%.2f req/sec)\n", total, elapsed.Round(time.Millisecond), float64(total)/elapsed.Seconds())
	fmt.Printf("latency mean: %v\n", time.Duration(int64(snapshot.Mean())))
	fmt.Printf("latency p50:  %v\n", time.Duration(int64(ps[0])))
	fmt.Printf("latency p95:  %v\n", time.Duration(int64(ps[1])))
	fmt.Printf("latency p99:  %v\n", time.Duration(int64(ps[2])))
	fmt.Printf("transport executions: %d\n", started.Get()-startedBefore)
	fmt.Printf("coalesced requests:   %d\n", joined.Get()-joinedBefore)

	return nil
}
