// Package outbox delivers queued chat messages to the store one at a time,
// in the order they were queued.
package outbox

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/matheus3301/pawchat/internal/store"
)

var (
	// ErrQueueFull is returned by Enqueue when the queue has no free slot.
	ErrQueueFull = errors.New("outbox: queue full")
	// ErrStopped is returned by Enqueue after Stop, and reported for entries
	// that were still queued when the sender stopped.
	ErrStopped = errors.New("outbox: sender stopped")
)

// DefaultSendTimeout bounds a single send.
const DefaultSendTimeout = 30 * time.Second

// Status is the delivery state of an outbox entry.
type Status string

const (
	Sending Status = "sending"
	Sent    Status = "sent"
	Failed  Status = "failed"
)

// Entry is a message waiting to be written.
type Entry struct {
	ClientMsgID    string
	ConversationID string
	SenderID       string
	Body           string
}

// Result reports a status change of an entry. Message is set when Status is
// Sent, Err when it is Failed.
type Result struct {
	Entry   Entry
	Status  Status
	Message *store.Message
	Err     error
}

// SendFunc writes one entry and returns the stored message.
type SendFunc func(ctx context.Context, e Entry) (*store.Message, error)

// ReportFunc receives every status change, on the sender goroutine.
type ReportFunc func(Result)

// Sender drains the queue with a single worker so entries commit in FIFO order.
type Sender struct {
	send   SendFunc
	report ReportFunc
	logger *zap.Logger
	queue  chan Entry

	// SendTimeout bounds each send. Zero means DefaultSendTimeout.
	SendTimeout time.Duration

	mu      sync.Mutex
	stopped bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewSender creates a sender with room for size queued entries.
func NewSender(send SendFunc, report ReportFunc, size int, logger *zap.Logger) *Sender {
	if size <= 0 {
		size = 32
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if report == nil {
		report = func(Result) {}
	}
	return &Sender{
		send:   send,
		report: report,
		logger: logger,
		queue:  make(chan Entry, size),
	}
}

// Start begins draining the queue.
func (s *Sender) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped || s.done != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	go s.loop(ctx, s.done)
}

// Enqueue appends e to the queue without blocking.
func (s *Sender) Enqueue(e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return ErrStopped
	}
	select {
	case s.queue <- e:
		return nil
	default:
		return ErrQueueFull
	}
}

// Stop waits for the in-flight send to finish, then reports every entry
// still queued as Failed with ErrStopped. It is idempotent.
func (s *Sender) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	for {
		select {
		case e := <-s.queue:
			s.report(Result{Entry: e, Status: Failed, Err: ErrStopped})
		default:
			return
		}
	}
}

func (s *Sender) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case e := <-s.queue:
			s.process(ctx, e)
		}
	}
}

func (s *Sender) process(ctx context.Context, e Entry) {
	s.report(Result{Entry: e, Status: Sending})

	timeout := s.SendTimeout
	if timeout <= 0 {
		timeout = DefaultSendTimeout
	}
	// A send that has started is allowed to finish after Stop.
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	msg, err := s.send(sendCtx, e)
	if err != nil {
		s.logger.Error("failed to send message",
			zap.Error(err),
			zap.String("client_msg_id", e.ClientMsgID),
			zap.String("conversation_id", e.ConversationID))
		s.report(Result{Entry: e, Status: Failed, Err: err})
		return
	}
	s.logger.Debug("message sent",
		zap.String("client_msg_id", e.ClientMsgID),
		zap.Int64("id", msg.ID))
	s.report(Result{Entry: e, Status: Sent, Message: msg})
}
