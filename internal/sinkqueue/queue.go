// Package sinkqueue implements the bounded, in-process FIFO handing
// parsed messages from the sink's network loop to its disk-writing
// goroutine, per spec.md §2's SinkQueue and §9's preference for an
// in-band termination sentinel over a mutable keep-alive flag.
package sinkqueue

import (
	"github.com/astafan8/Qcodes/internal/proto"
	"github.com/astafan8/Qcodes/internal/transport"
)

// Capacity bounds how many messages may sit between the network loop and
// the disk writer. Kept deliberately small ("bounded-in-spirit" per
// spec.md §2) so that a paused disk writer backs up into the data
// channel's TCP connection quickly, giving the producer's blocking Send
// the backpressure spec.md's P8 property describes.
const Capacity = 1

// Sentinel is the in-process termination message; a WriterThread that
// dequeues it must stop without looking at its other fields, exactly as
// ChunkHeader.IsSentinel documents.
var Sentinel = transport.DataMessage{Header: proto.ChunkHeader{ChunkID: proto.SentinelChunkID}}

// Queue is a thread-safe FIFO between one producer (the network loop) and
// one consumer (the WriterThread).
type Queue struct {
	ch chan transport.DataMessage
}

// New returns a Queue with the standard bounded capacity.
func New() *Queue {
	return &Queue{ch: make(chan transport.DataMessage, Capacity)}
}

// Push enqueues msg, blocking while the queue is full.
func (q *Queue) Push(msg transport.DataMessage) {
	q.ch <- msg
}

// PushSentinel enqueues the termination sentinel.
func (q *Queue) PushSentinel() {
	q.ch <- Sentinel
}

// Pop blocks until a message is available.
func (q *Queue) Pop() transport.DataMessage {
	return <-q.ch
}
