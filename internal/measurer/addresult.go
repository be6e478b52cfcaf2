package measurer

import (
	"time"

	"github.com/pkg/errors"

	"github.com/astafan8/Qcodes/internal/proto"
)

// ErrSpawnFailed is spec.md §7's SpawnFailed: after spawning a sink, it
// never answered a liveness probe within the spawn-settle budget.
var ErrSpawnFailed = errors.New("measurer: could not spawn a live sink")

// acceptTimeout bounds how long AddResult waits for the sink's data-channel
// connection to be accepted. By the time a liveness probe has succeeded,
// the sink's own INIT-time dial should already be queued, so this is a
// generous ceiling rather than an expected wait.
const acceptTimeout = proto.WriterSpawnSleepTime

// AddResult sends row under the current run's guid, spawning (or
// re-spawning) the sink if it appears to have gone quiet, per the
// algorithm in spec.md §4.3.
func (c *Client) AddResult(row proto.Row) error {
	if len(row) == 0 {
		return proto.ErrEmptyRow
	}

	if c.lastSendTime.IsZero() || time.Since(c.lastSendTime) > c.cfg.SuicideTimeout {
		if err := c.ensureSinkAlive(); err != nil {
			return err
		}
	}

	c.chunkID++
	header := proto.ChunkHeader{GUID: c.guid, ChunkID: c.chunkID}

	if err := c.push.Send(header, row, acceptTimeout); err != nil {
		return errors.Wrap(err, "measurer: send chunk")
	}

	c.lastSendTime = time.Now()
	return nil
}

// ensureSinkAlive implements spec.md §4.3 step 1: probe, and only on
// failure spawn, rebuild the request socket, and probe once more.
func (c *Client) ensureSinkAlive() error {
	req := proto.LivenessRequest{TimeoutSeconds: c.cfg.SuicideTimeout.Seconds()}

	if err := c.req.Probe(proto.SteadyStateProbeTimeout, req); err == nil {
		return nil
	}

	if _, err := c.supervisor.Spawn(c.ports, c.cfg.FileFormat); err != nil {
		return errors.Wrap(err, "measurer: spawn sink")
	}

	// The old sink's data-channel connection, if any, is dead along with
	// the sink itself: drop it so the next Send accepts the new sink's
	// own INIT-time dial instead of writing into the void.
	c.push.Reset()

	// The failed probe above already tore the session down (§4.5); Probe
	// will dial a fresh one on this next call.
	if err := c.req.Probe(proto.WriterSpawnSleepTime, req); err != nil {
		return errors.Wrapf(ErrSpawnFailed, "reprobe after spawn: %v", err)
	}
	return nil
}
