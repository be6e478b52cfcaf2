// Package proto defines the wire-level message shapes shared by the
// measurer and the writer: the data channel's chunk header and the
// request channel's liveness configuration frame.
package proto

// ZeroGUID is the placeholder guid a freshly constructed Client carries
// before its first StartRun.
const ZeroGUID = "00000000-0000-0000-0000-000000000000"

// SentinelChunkID marks the in-process termination message exchanged
// between the WriterLoop and the WriterThread over the SinkQueue. It must
// never be put on the wire.
const SentinelChunkID = -1

// ChunkHeader identifies the run and position of one Row on the data
// channel.
type ChunkHeader struct {
	GUID    string `json:"guid"`
	ChunkID int    `json:"chunkid"`
}

// IsSentinel reports whether h is the WriterThread termination sentinel.
func (h ChunkHeader) IsSentinel() bool {
	return h.ChunkID == SentinelChunkID
}
