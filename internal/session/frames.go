package session

import (
	"context"
	"io"
	"sync"
)

// frameChannelBuffer bounds queued frames per live session; producers
// faster than the evaluation loop get frames dropped, not backpressure.
const frameChannelBuffer = 16

// FrameChannel is a push-based FrameSource: HTTP handlers push frames in,
// the session loop consumes them. Closing the channel ends the session.
type FrameChannel struct {
	frames chan []byte
	done   chan struct{}
	once   sync.Once
}

// NewFrameChannel creates a frame channel.
func NewFrameChannel() *FrameChannel {
	return &FrameChannel{
		frames: make(chan []byte, frameChannelBuffer),
		done:   make(chan struct{}),
	}
}

// Push queues one frame. Returns false when the buffer is full or the
// channel is closed; the frame is dropped either way.
func (f *FrameChannel) Push(frame []byte) bool {
	select {
	case <-f.done:
		return false
	default:
	}
	select {
	case f.frames <- frame:
		return true
	default:
		return false
	}
}

// Next blocks until a frame is pushed, the channel is closed, or the
// context ends. Queued frames drain before the close is observed.
func (f *FrameChannel) Next(ctx context.Context) ([]byte, error) {
	select {
	case frame := <-f.frames:
		return frame, nil
	default:
	}
	select {
	case frame := <-f.frames:
		return frame, nil
	case <-f.done:
		return nil, io.EOF
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close ends the stream. Safe to call more than once.
func (f *FrameChannel) Close() {
	f.once.Do(func() { close(f.done) })
}
