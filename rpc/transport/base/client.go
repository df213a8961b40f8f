package base

import (
	"fmt"
	"math/rand"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/liveQ/rpc/common"
	"github.com/ValentinKolb/liveQ/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

var Logger = logger.GetLogger("transport/rpc")

// -----------------------------------------------------------
// Interface Definitions for dependency injection
// -----------------------------------------------------------

// IClientConnector defines the interface for transport-specific connection operations
type IClientConnector interface {
	// Connect establishes a single connection to the given endpoint
	Connect(endpoint string) (net.Conn, error)

	// GetName returns the name of the transport type (e.g., "unix", "tcp")
	GetName() string

	// UpgradeConnection applies protocol-specific settings to an established connection
	UpgradeConnection(conn net.Conn, config common.ClientConfig) error
}

// -----------------------------------------------------------
// Helper Types
// -----------------------------------------------------------

// reply carries the outcome of one in-flight request back to its caller
type reply struct {
	data []byte
	err  error
}

// pooledConn is a single connection in the pool together with its pending
// request table. The reader goroutine owns the read side, writers serialize
// via mu.
type pooledConn struct {
	conn     net.Conn
	endpoint string
	done     chan struct{} // closed to stop the reader goroutine
	pending  *xsync.MapOf[uint64, chan reply]
	mu       sync.Mutex // guards conn for writes and redial
	parent   *clientTransport
}

// clientTransport implements pooling, framing and retry shared by all
// connector types (unix, tcp, etc.)
type clientTransport struct {
	connector IClientConnector
	config    common.ClientConfig
	pool      []*pooledConn
	poolMu    sync.RWMutex
	rrCounter uint64 // round robin position
	reqID     uint64 // request ID source
	stopping  bool
}

// -----------------------------------------------------------
// Transport Factory Method (used for tcp, unix, etc.)
// -----------------------------------------------------------

// NewBaseClientTransport creates a new base client transport with the specified connector
func NewBaseClientTransport(connector IClientConnector) transport.IRPCClientTransport {
	return &clientTransport{
		connector: connector,
		reqID:     1,
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IRPCClientTransport)
// --------------------------------------------------------------------------

func (t *clientTransport) Connect(config common.ClientConfig) error {
	if len(config.Transport.Endpoints) == 0 {
		return fmt.Errorf("no endpoints provided")
	}

	t.config = config
	t.stopping = false

	// Drop any pool from a previous Connect
	t.closePool()

	perEndpoint := 1
	if config.Transport.ConnectionsPerEndpoint > 0 {
		perEndpoint = config.Transport.ConnectionsPerEndpoint
	}

	t.pool = make([]*pooledConn, 0, len(config.Transport.Endpoints)*perEndpoint)

	for _, endpoint := range config.Transport.Endpoints {
		for i := 0; i < perEndpoint; i++ {
			pc := &pooledConn{
				endpoint: endpoint,
				done:     make(chan struct{}),
				pending:  xsync.NewMapOf[uint64, chan reply](),
				parent:   t,
			}

			// Dial; a failed endpoint is skipped, not fatal
			if err := pc.redial(); err != nil {
				Logger.Warningf("Failed to connect to %s (connection %d/%d): %v", endpoint, i+1, perEndpoint, err)
				continue
			}

			t.poolMu.Lock()
			t.pool = append(t.pool, pc)
			t.poolMu.Unlock()

			Logger.Infof("Connected to %s (connection %d/%d)", endpoint, i+1, perEndpoint)

			go pc.readLoop()
		}
	}

	if len(t.pool) == 0 {
		return fmt.Errorf("failed to connect to any endpoint")
	}

	Logger.Infof("Connected to %d out of %d connections to %d endpoints using %s transport",
		len(t.pool), len(config.Transport.Endpoints)*perEndpoint, len(config.Transport.Endpoints), t.connector.GetName())

	return nil
}

func (t *clientTransport) Send(req []byte) (resp []byte, err error) {
	requestID := atomic.AddUint64(&t.reqID, 1)

	var lastErr error

	// At least one attempt, up to RetryCount
	attempts := t.config.Transport.RetryCount
	if attempts < 1 {
		attempts = 1
	}

	backoffMs := 50

	for i := 0; i < attempts; i++ {
		pc := t.nextConn()
		if pc == nil {
			return nil, fmt.Errorf("no active connections available")
		}

		data, err := t.dispatch(pc, requestID, req)
		if err == nil {
			return data, nil
		}

		lastErr = err
		Logger.Debugf("Request attempt %d/%d failed: %v", i+1, attempts, err)

		if i < attempts-1 {
			// Exponential backoff with +-10% jitter
			jitter := float64(backoffMs) * (0.9 + 0.2*rand.Float64())
			time.Sleep(time.Duration(jitter) * time.Millisecond)
			backoffMs *= 2
		}
	}

	return nil, fmt.Errorf("failed to send request after %d attempts: %v", attempts, lastErr)
}

func (t *clientTransport) Close() error {
	t.stopping = true
	t.closePool()
	return nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// dispatch writes one framed request on the given connection and waits for
// its correlated response
func (t *clientTransport) dispatch(pc *pooledConn, requestID uint64, req []byte) ([]byte, error) {
	if pc.conn == nil {
		return nil, fmt.Errorf("connection is closed")
	}

	// Register before writing so the reader can never race us
	respCh := make(chan reply, 1)
	pc.pending.Store(requestID, respCh)
	defer pc.pending.Delete(requestID)

	if t.config.TimeoutSecond > 0 {
		timeout := time.Duration(t.config.TimeoutSecond) * time.Second
		pc.conn.SetWriteDeadline(time.Now().Add(timeout))
	}

	// The lock covers only the write, reads run concurrently in readLoop
	pc.mu.Lock()
	err := writeFrame(pc.conn, requestID, req)
	pc.mu.Unlock()

	if err != nil {
		return nil, err
	}

	var timeoutCh <-chan time.Time
	if t.config.TimeoutSecond > 0 {
		timeoutCh = time.After(time.Duration(t.config.TimeoutSecond) * time.Second)
	} else {
		timeoutCh = make(chan time.Time) // never fires
	}

	select {
	case result := <-respCh:
		return result.data, result.err
	case <-timeoutCh:
		return nil, fmt.Errorf("request timed out")
	}
}

// nextConn picks a connection round robin
func (t *clientTransport) nextConn() *pooledConn {
	t.poolMu.RLock()
	defer t.poolMu.RUnlock()

	switch len(t.pool) {
	case 0:
		return nil
	case 1:
		return t.pool[0]
	default:
		return t.pool[atomic.AddUint64(&t.rrCounter, 1)%uint64(len(t.pool))]
	}
}

// closePool tears down all pooled connections and their readers
func (t *clientTransport) closePool() {
	t.poolMu.Lock()
	defer t.poolMu.Unlock()

	for _, pc := range t.pool {
		close(pc.done)
		if pc.conn != nil {
			pc.conn.Close()
		}
	}
	t.pool = nil
}

// readLoop reads response frames and routes them to the pending request
// they answer. A read error on an unknown request ID is treated as a broken
// connection and triggers a redial.
func (c *pooledConn) readLoop() {
	for {
		select {
		case <-c.done:
			return
		default:
		}

		if c.parent.config.TimeoutSecond > 0 {
			timeout := time.Duration(c.parent.config.TimeoutSecond) * time.Second
			c.conn.SetReadDeadline(time.Now().Add(timeout))
		}

		requestID, data, err := readFrame(c.conn, nil)

		respCh, found := c.pending.Load(requestID)
		switch {
		case found && err != nil:
			respCh <- reply{nil, fmt.Errorf("error reading response: %v", err)}
		case found:
			respCh <- reply{data, nil}
		case err != nil:
			Logger.Errorf("Error reading response with unknown request ID %d: %v", requestID, err)
			if err := c.redial(); err != nil {
				Logger.Errorf("Failed to reconnect to %s: %v", c.endpoint, err)
				return
			}
		default:
			Logger.Warningf("Received response for unknown request ID %d", requestID)
		}
	}
}

// redial establishes or restores the connection to the endpoint
func (c *pooledConn) redial() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}

	conn, err := c.parent.connector.Connect(c.endpoint)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %v", c.endpoint, err)
	}

	if err := c.parent.connector.UpgradeConnection(conn, c.parent.config); err != nil {
		conn.Close()
		return fmt.Errorf("failed to upgrade connection to %s: %v", c.endpoint, err)
	}

	c.conn = conn
	return nil
}
