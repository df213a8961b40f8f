package serve

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	cmdUtil "github.com/ValentinKolb/liveQ/cmd/util"
	"github.com/ValentinKolb/liveQ/rpc/common"
	"github.com/ValentinKolb/liveQ/rpc/server"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	serveCmdConfig = &common.ServerConfig{}
	ServeCmd       = &cobra.Command{
		Use:     "serve",
		Short:   "Start a liveQ operation server",
		Long:    `Start a liveQ operation server with the specified configuration. The configuration can be set via command line flags or environment variables. The format of the environment variables is LIVEQ_<flag> (e.g. LIVEQ_TIMEOUT=15)`,
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	// initialize viper
	cobra.OnInitialize(initConfig)

	// add flags
	key := "endpoint"
	ServeCmd.PersistentFlags().String(key, "0.0.0.0:8080", cmdUtil.WrapString("The address on which the API will listen (e.g. http:localhost:8080, /tmp/liveq.sock, ...)"))

	key = "timeout"
	ServeCmd.PersistentFlags().Int64(key, 5, cmdUtil.WrapString("Timeout in seconds"))

	key = "workers"
	ServeCmd.PersistentFlags().Int(key, 0, cmdUtil.WrapString("Number of request workers per connection (0 uses the number of CPU cores)"))

	key = "log-level"
	ServeCmd.PersistentFlags().String(key, "info", cmdUtil.WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))

	key = "data"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("Optional path to a JSON file mapping operation names to static results. Each entry is registered as a query handler"))
}

// processConfig reads the configuration from the command line flags and environment variables and converts it to the server configuration
func processConfig(cmd *cobra.Command, _ []string) error {
	// bind the flags to viper
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// read the configuration from the command line flags and environment variables
	serveCmdConfig.Transport.Endpoint = viper.GetString("endpoint")
	serveCmdConfig.TimeoutSecond = viper.GetInt64("timeout")
	serveCmdConfig.WorkersPerConn = viper.GetInt("workers")
	serveCmdConfig.LogLevel = viper.GetString("log-level")

	return nil
}

// run starts the liveQ operation server
func run(_ *cobra.Command, _ []string) error {

	// parse the serializer
	s, err := cmdUtil.GetSerializer()
	if err != nil {
		return err
	}

	// parse the transport
	t, err := cmdUtil.GetServerTransport()
	if err != nil {
		return err
	}

	serv := server.NewRPCServer(
		*serveCmdConfig,
		t,
		s,
	)

	// built-in demo operations
	serv.RegisterQuery("echo", func(variables []byte) ([]byte, error) {
		if len(variables) == 0 {
			return []byte("null"), nil
		}
		return variables, nil
	})
	serv.RegisterQuery("now", func(_ []byte) ([]byte, error) {
		return json.Marshal(map[string]string{"now": time.Now().Format(time.RFC3339Nano)})
	})
	serv.RegisterMutation("echoMutation", func(variables []byte) ([]byte, error) {
		return variables, nil
	})

	// static operations from the data file
	if path := viper.GetString("data"); path != "" {
		if err := registerStaticOperations(serv, path); err != nil {
			return err
		}
	}

	return serv.Serve()
}

// registerStaticOperations reads a JSON file mapping operation names to
// results and registers a query handler for each entry
func registerStaticOperations(serv server.IRPCServer, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read data file: %w", err)
	}

	var operations map[string]json.RawMessage
	if err := json.Unmarshal(raw, &operations); err != nil {
		return fmt.Errorf("invalid data file %s: %w", path, err)
	}

	for name, result := range operations {
		result := result
		serv.RegisterQuery(name, func(_ []byte) ([]byte, error) {
			return result, nil
		})
	}

	return nil
}

// initConfig reads in the env files and ENV variables if set.
func initConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix("liveq")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}
