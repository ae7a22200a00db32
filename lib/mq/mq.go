// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package mq

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/bureau-foundation/postoffice/lib/codec"
	"github.com/bureau-foundation/postoffice/lib/office"
)

var (
	// ErrRemoved is returned once the queue has been removed.
	ErrRemoved = errors.New("mq: message queue removed")

	// ErrMalformed wraps a frame that does not decode as a ticket
	// request. The frame is consumed.
	ErrMalformed = errors.New("mq: malformed frame")
)

// Queue is the ticket-request queue: many users send, the issuer
// receives. Messages cross it as CBOR frames so that the slot a
// message names is the only shared reference between sender and
// receiver.
type Queue struct {
	frames chan []byte

	removed    chan struct{}
	removeOnce sync.Once
}

// New creates a queue that holds at most capacity frames.
func New(capacity int) *Queue {
	if capacity <= 0 {
		capacity = 1
	}
	return &Queue{
		frames:  make(chan []byte, capacity),
		removed: make(chan struct{}),
	}
}

// Send encodes msg and appends it, blocking while the queue is full.
func (q *Queue) Send(ctx context.Context, msg office.TicketRequestMessage) error {
	frame, err := codec.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encoding ticket request for slot %d: %w", msg.Slot, err)
	}
	return q.SendFrame(ctx, frame)
}

// SendFrame appends a pre-encoded frame.
func (q *Queue) SendFrame(ctx context.Context, frame []byte) error {
	select {
	case <-q.removed:
		return ErrRemoved
	default:
	}
	select {
	case q.frames <- frame:
		return nil
	case <-q.removed:
		return ErrRemoved
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Receive blocks until a frame is available and decodes it. A frame
// that does not decode returns an error wrapping ErrMalformed; the
// caller logs it and receives again.
func (q *Queue) Receive(ctx context.Context) (office.TicketRequestMessage, error) {
	var msg office.TicketRequestMessage
	select {
	case <-q.removed:
		return msg, ErrRemoved
	default:
	}
	select {
	case frame := <-q.frames:
		if err := codec.UnmarshalStrict(frame, &msg); err != nil {
			return office.TicketRequestMessage{}, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		return msg, nil
	case <-q.removed:
		return msg, ErrRemoved
	case <-ctx.Done():
		return msg, ctx.Err()
	}
}

// Len returns the number of frames waiting.
func (q *Queue) Len() int { return len(q.frames) }

// Drain discards every waiting frame and returns how many there were.
func (q *Queue) Drain() int {
	count := 0
	for {
		select {
		case <-q.frames:
			count++
		default:
			return count
		}
	}
}

// Remove destroys the queue. Blocked and later calls return
// ErrRemoved. Idempotent.
func (q *Queue) Remove() {
	q.removeOnce.Do(func() { close(q.removed) })
}
