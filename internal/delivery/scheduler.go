// Package delivery paces outbound replies so they read like a person typing:
// the reply is chunked, and each chunk is preceded by a composing presence
// and a delay proportional to its length.
package delivery

import (
	"context"
	"time"

	"zapleads_backend/platform/logger"
)

// Sender is the outbound side of the messaging gateway.
type Sender interface {
	SendText(ctx context.Context, phone, text string) (providerID string, err error)
	SendPresence(ctx context.Context, phone string, composing bool) error
}

type Options struct {
	ChunkLimit int
	MinDelay   time.Duration
	MaxDelay   time.Duration
	ChunkGap   time.Duration
}

type Scheduler struct {
	sender Sender
	opts   Options
	log    *logger.Logger
	// sleep is swapped in tests to avoid real waiting.
	sleep func(ctx context.Context, d time.Duration) error
}

func NewScheduler(sender Sender, opts Options, log *logger.Logger) *Scheduler {
	if opts.ChunkLimit <= 0 {
		opts.ChunkLimit = 280
	}
	if opts.MinDelay <= 0 {
		opts.MinDelay = 800 * time.Millisecond
	}
	if opts.MaxDelay < opts.MinDelay {
		opts.MaxDelay = 4 * time.Second
	}
	if opts.ChunkGap <= 0 {
		opts.ChunkGap = 600 * time.Millisecond
	}
	return &Scheduler{sender: sender, opts: opts, log: log, sleep: sleepCtx}
}

// Sent describes one delivered chunk.
type Sent struct {
	Body       string
	ProviderID string
}

// Deliver sends the reply to the phone chunk by chunk, strictly in order.
// It stops at the first send failure or context cancellation and returns the
// chunks that made it out.
func (s *Scheduler) Deliver(ctx context.Context, phone, reply string) ([]Sent, error) {
	chunks := SplitChunks(reply, s.opts.ChunkLimit)
	sent := make([]Sent, 0, len(chunks))

	for i, chunk := range chunks {
		if err := s.sender.SendPresence(ctx, phone, true); err != nil {
			s.log.Warn("presence update failed", "phone", phone, "error", err)
		}

		if err := s.sleep(ctx, s.typingDelay(chunk)); err != nil {
			return sent, err
		}

		providerID, err := s.sender.SendText(ctx, phone, chunk)
		if err != nil {
			return sent, err
		}
		sent = append(sent, Sent{Body: chunk, ProviderID: providerID})

		if i < len(chunks)-1 {
			if err := s.sleep(ctx, s.opts.ChunkGap); err != nil {
				return sent, err
			}
		}
	}

	if err := s.sender.SendPresence(ctx, phone, false); err != nil {
		s.log.Warn("presence update failed", "phone", phone, "error", err)
	}
	return sent, nil
}

// typingDelay scales with chunk length and stays inside [MinDelay, MaxDelay].
func (s *Scheduler) typingDelay(chunk string) time.Duration {
	perChar := 35 * time.Millisecond
	d := time.Duration(len(chunk)) * perChar
	if d < s.opts.MinDelay {
		return s.opts.MinDelay
	}
	if d > s.opts.MaxDelay {
		return s.opts.MaxDelay
	}
	return d
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
