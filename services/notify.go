package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cppla/webdevhub/utils"
)

// EventType names a notification.
type EventType string

const (
	EventWelcome          EventType = "welcome"
	EventCommentAdded     EventType = "comment_added"
	EventReplyAdded       EventType = "reply_added"
	EventContactAdmin     EventType = "contact_admin"
	EventContactAutoReply EventType = "contact_auto_reply"
	EventContactReply     EventType = "contact_reply"
)

// Event is one notification addressed to a single recipient.
type Event struct {
	Type EventType
	To   string

	// Recipient display name.
	Name string
	// Actor is who triggered the event, e.g. the commenter.
	Actor string
	// Title of the post or thread, or the contact subject.
	Title   string
	Link    string
	Message string
	Reply   string
	Email   string
}

// Notifier delivers a single event synchronously.
type Notifier interface {
	Notify(ctx context.Context, ev Event) error
}

// Mailer sends one rendered message.
type Mailer interface {
	Send(ctx context.Context, mail utils.Mail) error
}

// MailNotifier renders events into HTML mail.
type MailNotifier struct {
	mailer    Mailer
	templates *mailTemplates
}

// NewMailNotifier binds templates branded with siteName to mailer.
func NewMailNotifier(mailer Mailer, siteName, siteURL string) *MailNotifier {
	return &MailNotifier{mailer: mailer, templates: newMailTemplates(siteName, siteURL)}
}

// Notify renders ev and sends it.
func (n *MailNotifier) Notify(ctx context.Context, ev Event) error {
	if ev.To == "" {
		return errors.New("notification has no recipient")
	}
	mail, err := n.templates.render(ev)
	if err != nil {
		return err
	}
	return n.mailer.Send(ctx, mail)
}

// ErrDispatcherClosed is returned by Enqueue after Shutdown.
var ErrDispatcherClosed = errors.New("dispatcher closed")

// ErrQueueFull is returned by Enqueue when the buffer is saturated; the event is dropped.
var ErrQueueFull = errors.New("notification queue full")

// Dispatcher delivers events in the background on a bounded worker pool.
// Events are fire-and-forget: failures are logged, never retried.
type Dispatcher struct {
	notifier Notifier
	timeout  time.Duration
	log      *zap.Logger

	mu     sync.RWMutex
	closed bool
	queue  chan Event
	wg     sync.WaitGroup
}

// NewDispatcher starts workers goroutines draining a queue of queueSize events.
func NewDispatcher(notifier Notifier, workers, queueSize int, timeout time.Duration, log *zap.Logger) *Dispatcher {
	if workers <= 0 {
		workers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	d := &Dispatcher{
		notifier: notifier,
		timeout:  timeout,
		log:      log,
		queue:    make(chan Event, queueSize),
	}
	d.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go d.worker()
	}
	return d
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for ev := range d.queue {
		d.deliver(ev)
	}
}

func (d *Dispatcher) deliver(ev Event) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error("notification panicked", zap.String("type", string(ev.Type)), zap.Any("panic", r))
		}
	}()
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()
	if err := d.notifier.Notify(ctx, ev); err != nil {
		d.log.Warn("notification failed",
			zap.String("type", string(ev.Type)),
			zap.String("to", ev.To),
			zap.Error(err))
		return
	}
	d.log.Debug("notification sent", zap.String("type", string(ev.Type)), zap.String("to", ev.To))
}

// Enqueue hands ev to the pool without blocking.
func (d *Dispatcher) Enqueue(ev Event) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrDispatcherClosed
	}
	select {
	case d.queue <- ev:
		return nil
	default:
		d.log.Warn("notification dropped, queue full", zap.String("type", string(ev.Type)), zap.String("to", ev.To))
		return ErrQueueFull
	}
}

// Shutdown stops accepting events and waits for queued ones until ctx expires.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
