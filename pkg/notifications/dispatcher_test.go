package notifications

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSender struct {
	mu       sync.Mutex
	sent     []Notification
	failures int
}

func (s *recordingSender) Name() string { return "recording" }

func (s *recordingSender) Send(ctx context.Context, n Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failures > 0 {
		s.failures--
		return fmt.Errorf("transient send failure")
	}
	s.sent = append(s.sent, n)
	return nil
}

func (s *recordingSender) delivered() []Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Notification, len(s.sent))
	copy(out, s.sent)
	return out
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func fastConfig() DispatcherConfig {
	config := DefaultDispatcherConfig()
	config.Retry = RetryConfig{
		MaxAttempts:       3,
		InitialDelay:      time.Millisecond,
		MaxDelay:          5 * time.Millisecond,
		BackoffMultiplier: 2.0,
	}
	config.SendTimeout = time.Second
	return config
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition never met")
}

func TestDispatcher_DeliversEnqueued(t *testing.T) {
	sender := &recordingSender{}
	d := NewDispatcher(context.Background(), fastConfig(), []Sender{sender}, quietLogger(), nil)
	defer d.Shutdown(time.Second)

	ok := d.Enqueue(Notification{
		Kind:       KindPartyAdded,
		PermitID:   1,
		Recipients: []int64{7},
		ActorName:  "Dana",
	})
	require.True(t, ok)

	waitFor(t, func() bool { return len(sender.delivered()) == 1 })
	assert.Equal(t, KindPartyAdded, sender.delivered()[0].Kind)
}

func TestDispatcher_RetriesTransientFailure(t *testing.T) {
	sender := &recordingSender{failures: 2}
	d := NewDispatcher(context.Background(), fastConfig(), []Sender{sender}, quietLogger(), nil)
	defer d.Shutdown(time.Second)

	require.True(t, d.Enqueue(Notification{
		Kind:       KindMessageSent,
		PermitID:   1,
		Recipients: []int64{7},
	}))

	// Two failures then success within MaxAttempts
	waitFor(t, func() bool { return len(sender.delivered()) == 1 })
}

func TestDispatcher_GivesUpAfterMaxAttempts(t *testing.T) {
	sender := &recordingSender{failures: 100}
	d := NewDispatcher(context.Background(), fastConfig(), []Sender{sender}, quietLogger(), nil)
	defer d.Shutdown(time.Second)

	require.True(t, d.Enqueue(Notification{
		Kind:       KindMessageSent,
		PermitID:   1,
		Recipients: []int64{7},
	}))

	// Every attempt up to MaxAttempts fails; nothing is delivered.
	waitFor(t, func() bool {
		sender.mu.Lock()
		defer sender.mu.Unlock()
		return sender.failures <= 97
	})
	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, sender.delivered())
}

func TestDispatcher_SkipsEmptyRecipients(t *testing.T) {
	sender := &recordingSender{}
	d := NewDispatcher(context.Background(), fastConfig(), []Sender{sender}, quietLogger(), nil)
	defer d.Shutdown(time.Second)

	assert.True(t, d.Enqueue(Notification{Kind: KindPhotoShared, PermitID: 1}))
	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, sender.delivered())
}

func TestDispatcher_DropsWhenQueueFull(t *testing.T) {
	block := make(chan struct{})
	blocking := senderFunc(func(ctx context.Context, n Notification) error {
		<-block
		return nil
	})

	config := fastConfig()
	config.Workers = 1
	config.QueueSize = 1
	d := NewDispatcher(context.Background(), config, []Sender{blocking}, quietLogger(), nil)
	defer func() {
		close(block)
		d.Shutdown(time.Second)
	}()

	n := Notification{Kind: KindMessageSent, PermitID: 1, Recipients: []int64{7}}

	// Saturate the worker and the queue, then expect a drop.
	dropped := false
	for i := 0; i < 20; i++ {
		if !d.Enqueue(n) {
			dropped = true
			break
		}
	}
	assert.True(t, dropped, "dispatcher should drop once the queue is full")
}

type senderFunc func(ctx context.Context, n Notification) error

func (f senderFunc) Name() string                                  { return "func" }
func (f senderFunc) Send(ctx context.Context, n Notification) error { return f(ctx, n) }
