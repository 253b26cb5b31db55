package memory

import (
	"context"
	"sync"

	"github.com/agustinrios/cedearscan/internal/domain"
)

// SignalBus implements domain.SignalBus in process with per-channel fan-out.
// Slow subscribers drop messages rather than blocking the publisher.
type SignalBus struct {
	mu   sync.Mutex
	subs map[string][]chan []byte
}

// NewSignalBus creates an in-process SignalBus.
func NewSignalBus() *SignalBus {
	return &SignalBus{subs: make(map[string][]chan []byte)}
}

// Publish fans the payload out to every subscriber of channel.
func (sb *SignalBus) Publish(ctx context.Context, channel string, payload []byte) error {
	sb.mu.Lock()
	subs := append([]chan []byte(nil), sb.subs[channel]...)
	sb.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- payload:
		default:
			// Subscriber buffer full; drop for this listener.
		}
	}
	return nil
}

// Subscribe registers a listener on channel. The returned channel is closed
// when ctx is cancelled.
func (sb *SignalBus) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	ch := make(chan []byte, 128)

	sb.mu.Lock()
	sb.subs[channel] = append(sb.subs[channel], ch)
	sb.mu.Unlock()

	go func() {
		<-ctx.Done()
		sb.mu.Lock()
		subs := sb.subs[channel]
		for i, c := range subs {
			if c == ch {
				sb.subs[channel] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
		sb.mu.Unlock()
		close(ch)
	}()

	return ch, nil
}

// Compile-time interface check.
var _ domain.SignalBus = (*SignalBus)(nil)
