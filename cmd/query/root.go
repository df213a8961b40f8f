package query

import (
	"encoding/json"
	"fmt"

	"github.com/ValentinKolb/liveQ/cmd/util"
	"github.com/ValentinKolb/liveQ/lib/query"
	"github.com/ValentinKolb/liveQ/rpc/client"
	"github.com/spf13/cobra"
)

var (
	coord        query.ICoordinator
	mutationExec query.IExecutor

	// QueryCommands represents the query command group
	QueryCommands = &cobra.Command{
		Use:               "query",
		Short:             "Execute and watch named operations on a liveQ server",
		PersistentPreRunE: setupQueryClient,
	}
)

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitClientConfig)

	// Add common RPC flags to the query command
	util.SetupRPCClientFlags(QueryCommands)

	// Add subcommands
	QueryCommands.AddCommand(runCmd)
	QueryCommands.AddCommand(mutateCmd)
	QueryCommands.AddCommand(watchCmd)
	QueryCommands.AddCommand(perfTestCmd)
}

// setupQueryClient initializes the coordinator and the mutation executor
func setupQueryClient(cmd *cobra.Command, _ []string) error {
	// Bind command flags to viper
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	// Get client configuration components
	config := util.GetClientConfig()

	// Get serializer and transport
	s, err := util.GetSerializer()
	if err != nil {
		return err
	}

	t, err := util.GetTransport()
	if err != nil {
		return err
	}

	// Create the query executor and the coordinator on top of it
	executor, err := client.NewRemoteExecutor(*config, t, s)
	if err != nil {
		return err
	}
	coord = query.NewCoordinator(executor, nil)

	// Mutations bypass the coordinator, they must never be coalesced
	// with concurrent identical requests. A second transport is used so
	// the two executors do not share connections.
	t2, err := util.GetTransport()
	if err != nil {
		return err
	}
	mutationExec, err = client.NewMutationExecutor(*config, t2, s)

	return err
}

// parseVariables decodes the optional variables argument. Decoding into any
// and re-encoding via the codec makes two textually different JSON documents
// with the same content produce the same request.
func parseVariables(args []string) (any, error) {
	if len(args) < 2 || args[1] == "" {
		return nil, nil
	}
	var vars any
	if err := json.Unmarshal([]byte(args[1]), &vars); err != nil {
		return nil, fmt.Errorf("variables must be valid JSON: %w", err)
	}
	return vars, nil
}
