package measurer

import "github.com/google/uuid"

func newUUID() string {
	return uuid.NewString()
}

// StartRun allocates a fresh guid and resets the chunk counter, per
// spec.md §4.3.
func (c *Client) StartRun() {
	c.guid = c.cfg.GUIDGenerator()
	c.chunkID = 0
}

// GUID returns the current run's guid.
func (c *Client) GUID() string {
	return c.guid
}
