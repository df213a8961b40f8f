package util

import (
	"fmt"
	"strings"

	"github.com/ValentinKolb/liveQ/rpc/common"
	"github.com/ValentinKolb/liveQ/rpc/serializer"
	"github.com/ValentinKolb/liveQ/rpc/transport"
	"github.com/ValentinKolb/liveQ/rpc/transport/http"
	"github.com/ValentinKolb/liveQ/rpc/transport/tcp"
	"github.com/ValentinKolb/liveQ/rpc/transport/unix"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50
)

// WrapString wraps a help text at Wrap characters, breaking on word
// boundaries
func WrapString(text string) string {
	var b strings.Builder
	lineLen := 0

	for i, word := range strings.Fields(text) {
		if lineLen > 0 && lineLen+1+len(word) > Wrap {
			b.WriteByte('\n')
			lineLen = 0
		} else if i > 0 {
			b.WriteByte(' ')
			lineLen++
		}
		b.WriteString(word)
		lineLen += len(word)
	}

	return b.String()
}

// SetupRPCClientFlags adds the shared connection flags to a command
func SetupRPCClientFlags(cmd *cobra.Command) {
	pf := cmd.PersistentFlags()

	pf.Int("timeout", 10, WrapString("The timeout in seconds of the client"))
	pf.String("transport-endpoints", "http://localhost:8080", WrapString("The address of the liveQ server. For transports that support load balancing, multiple endpoints can be specified as a comma-separated list"))
	pf.Int("transport-conn-per-endpoint", 1, WrapString("Simultaneous connections per endpoint - for transports that support this feature"))
	pf.Int("transport-retries", 3, WrapString("How many times to retry the request"))
	pf.Int("transport-write-buffer", 512, WrapString("The size of the write buffer for the transport (in KB, ignored for http)"))
	pf.Int("transport-read-buffer", 512, WrapString("The size of the read buffer for the transport (in KB, ignored for http)"))
	pf.Bool("transport-tcp-nodelay", true, WrapString("Whether to enable TCP_NODELAY for the transport (tcp only)"))
	pf.Int("transport-tcp-keepalive", 0, WrapString("The keepalive interval for the transport (in seconds, tcp only)"))
	pf.Int("transport-tcp-linger", 0, WrapString("The linger time for the transport (in seconds, tcp only)"))
}

// InitClientConfig initializes configuration from environment variables
func InitClientConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix("liveq")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// GetClientConfig reads client configuration from viper
func GetClientConfig() *common.ClientConfig {
	conf := &common.ClientConfig{
		TimeoutSecond: viper.GetInt("timeout"),
		Transport: common.ClientTransportConfig{
			RetryCount:             viper.GetInt("transport-retries"),
			Endpoints:              strings.Split(viper.GetString("transport-endpoints"), ","),
			ConnectionsPerEndpoint: viper.GetInt("transport-conn-per-endpoint"),
			SocketConf: common.SocketConf{
				WriteBufferSize: viper.GetInt("transport-write-buffer") * 1024,
				ReadBufferSize:  viper.GetInt("transport-read-buffer") * 1024,
			},
			TCPConf: common.TCPConf{
				TCPKeepAliveSec: viper.GetInt("transport-tcp-keepalive"),
				TCPLingerSec:    viper.GetInt("transport-tcp-linger"),
				TCPNoDelay:      viper.GetBool("transport-tcp-nodelay"),
			},
		},
	}

	return conf
}

// GetSerializer creates a serializer based on configuration
func GetSerializer() (serializer.IRPCSerializer, error) {
	switch viper.GetString("serializer") {
	case "json":
		return serializer.NewJSONSerializer(), nil
	case "gob":
		return serializer.NewGOBSerializer(), nil
	case "binary":
		return serializer.NewBinarySerializer(), nil
	default:
		return nil, fmt.Errorf("invalid serializer %s", viper.GetString("serializer"))
	}
}

// GetTransport creates a client transport based on configuration
func GetTransport() (transport.IRPCClientTransport, error) {
	switch viper.GetString("transport") {
	case "http":
		return http.NewHttpClientTransport(), nil
	case "tcp":
		return tcp.NewTCPClientTransport(), nil
	case "unix":
		return unix.NewUnixClientTransport(), nil
	default:
		return nil, fmt.Errorf("invalid transport %s", viper.GetString("transport"))
	}
}

// GetServerTransport creates a server transport based on configuration
func GetServerTransport() (transport.IRPCServerTransport, error) {
	switch viper.GetString("transport") {
	case "http":
		return http.NewHttpServerTransport(), nil
	case "tcp":
		return tcp.NewTCPServerTransport(), nil
	case "unix":
		return unix.NewUnixServerTransport(), nil
	default:
		return nil, fmt.Errorf("invalid transport %s", viper.GetString("transport"))
	}
}

// BindCommandFlags binds a command's flags to viper
func BindCommandFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}
