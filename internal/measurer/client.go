// Package measurer implements MeasurerClient (spec.md §4.3): the
// producer-side runtime that owns the push/req sockets, spawns the sink
// on demand, and keeps its own liveness re-check clock.
package measurer

import (
	"time"

	"github.com/pkg/errors"

	"github.com/astafan8/Qcodes/internal/format"
	"github.com/astafan8/Qcodes/internal/portalloc"
	"github.com/astafan8/Qcodes/internal/proto"
	"github.com/astafan8/Qcodes/internal/spawn"
	"github.com/astafan8/Qcodes/internal/transport"
)

// Config configures a Client, mirroring the teacher's Config-struct
// idiom (client/main.go's Config) rather than a functional-options API,
// which does not appear anywhere in the retrieved pack.
type Config struct {
	// StartPort seeds the port scan (spec.md §4.1).
	StartPort int
	// PortScanAttempts defaults to proto.PortScanAttempts when zero.
	PortScanAttempts int
	// SuicideTimeout defaults to proto.DefaultSuicideTimeout when zero.
	SuicideTimeout time.Duration
	// FileFormat defaults to format.DefaultFormat() when empty.
	FileFormat string
	// SinkExePath is the sink binary to spawn (cmd/writer's built output).
	SinkExePath string
	// GUIDGenerator defaults to a version-4 UUID generator; tests may
	// substitute a deterministic one, per spec.md §4.3.
	GUIDGenerator func() string
}

func (c *Config) setDefaults() error {
	if c.PortScanAttempts == 0 {
		c.PortScanAttempts = proto.PortScanAttempts
	}
	if c.SuicideTimeout == 0 {
		c.SuicideTimeout = proto.DefaultSuicideTimeout
	}
	if c.FileFormat == "" {
		c.FileFormat = format.DefaultFormat()
	}
	if _, err := format.New(c.FileFormat); err != nil {
		return err
	}
	if c.GUIDGenerator == nil {
		c.GUIDGenerator = newUUID
	}
	return nil
}

// Client is the spec's MeasurerClient.
type Client struct {
	cfg   Config
	ports portalloc.PortPair

	push       *transport.PushSocket
	req        *transport.RequestChannel
	supervisor *spawn.Supervisor

	guid         string
	chunkID      int
	lastSendTime time.Time
}

// NewClient acquires a port pair and builds both sockets. The sink is not
// spawned here; spawning happens lazily on the first AddResult, exactly
// as spec.md §4.3 describes.
func NewClient(cfg Config) (*Client, error) {
	if err := cfg.setDefaults(); err != nil {
		return nil, err
	}

	ports, ln, err := portalloc.Acquire(cfg.StartPort, cfg.PortScanAttempts)
	if err != nil {
		return nil, err
	}

	return &Client{
		cfg:        cfg,
		ports:      ports,
		push:       transport.NewPushSocket(ln),
		req:        transport.NewRequestChannel(ports.ReqPort),
		supervisor: spawn.NewSupervisor(cfg.SinkExePath),
		guid:       proto.ZeroGUID,
	}, nil
}

// PushPort returns the bound push port, for diagnostics and tests.
func (c *Client) PushPort() int { return c.ports.PushPort }

// ReqPort returns the sink's bound request port, for diagnostics and tests.
func (c *Client) ReqPort() int { return c.ports.ReqPort }

// Close releases both sockets. It does not kill a spawned sink; the sink
// governs its own lifetime via the idle timeout.
func (c *Client) Close() error {
	c.req.Close()
	return errors.Wrap(c.push.Close(), "measurer: close push socket")
}
