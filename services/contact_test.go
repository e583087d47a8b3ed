package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/cppla/webdevhub/models"
	"github.com/cppla/webdevhub/storage/memory"
	"github.com/cppla/webdevhub/utils"
)

type stubCaptcha struct{ answer string }

func (c stubCaptcha) Verify(id, answer string) bool { return id != "" && answer == c.answer }

func newContactService(t *testing.T, captcha CaptchaVerifier) (*ContactService, *recordingSink, *fakeNotifier) {
	t.Helper()
	sink := &recordingSink{}
	notifier := &fakeNotifier{}
	svc := NewContactService(memory.New(), sink, notifier, captcha, "admin@example.com", zap.NewNop())
	return svc, sink, notifier
}

var sampleContact = ContactInput{
	Name:    "Jane Doe",
	Email:   "Jane@Example.com",
	Subject: "Partnership",
	Message: "Hello there, let's talk.",
}

func TestContact_SubmitQueuesBothNotices(t *testing.T) {
	svc, sink, _ := newContactService(t, nil)

	msg, err := svc.Submit(context.Background(), sampleContact, Origin{IP: "10.0.0.1", UserAgent: "test"})
	require.NoError(t, err)
	assert.Equal(t, models.ContactPending, msg.Status)
	assert.Equal(t, "jane@example.com", msg.Email)
	assert.Equal(t, "10.0.0.1", msg.IPAddress)

	events := sink.Events()
	require.Len(t, events, 2)
	types := []EventType{events[0].Type, events[1].Type}
	assert.ElementsMatch(t, []EventType{EventContactAutoReply, EventContactAdmin}, types)
}

func TestContact_SubmitSurvivesFullQueue(t *testing.T) {
	svc, sink, _ := newContactService(t, nil)
	sink.err = ErrQueueFull

	msg, err := svc.Submit(context.Background(), sampleContact, Origin{})
	require.NoError(t, err)
	assert.NotEmpty(t, msg.ID)
}

func TestContact_Captcha(t *testing.T) {
	svc, _, _ := newContactService(t, stubCaptcha{answer: "12345"})
	ctx := context.Background()
	assert.True(t, svc.CaptchaRequired())

	_, err := svc.Submit(ctx, sampleContact, Origin{})
	requireKind(t, err, KindValidation)

	in := sampleContact
	in.CaptchaID, in.CaptchaAnswer = "c1", " 12345 "
	_, err = svc.Submit(ctx, in, Origin{})
	assert.NoError(t, err)
}

func TestContact_Lifecycle(t *testing.T) {
	svc, _, notifier := newContactService(t, nil)
	ctx := context.Background()

	msg, err := svc.Submit(ctx, sampleContact, Origin{})
	require.NoError(t, err)

	got, err := svc.Get(ctx, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ContactRead, got.Status)
	got, err = svc.Get(ctx, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ContactRead, got.Status)

	notifier.err = errors.New("smtp down")
	_, err = svc.Reply(ctx, msg.ID, "Thanks for reaching out!")
	var se *Error
	require.ErrorAs(t, err, &se)
	assert.Equal(t, KindDeliveryFailed, se.Kind)
	assert.True(t, se.Retryable())
	got, err = svc.Get(ctx, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ContactRead, got.Status, "failed delivery keeps status")

	notifier.err = nil
	replied, err := svc.Reply(ctx, msg.ID, "Thanks for reaching out!")
	require.NoError(t, err)
	assert.Equal(t, models.ContactReplied, replied.Status)
	assert.Equal(t, "Thanks for reaching out!", replied.ReplyMessage)
	require.NotNil(t, replied.RepliedAt)
	sent := notifier.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, EventContactReply, sent[0].Type)
	assert.Equal(t, "jane@example.com", sent[0].To)

	_, err = svc.SetStatus(ctx, msg.ID, "archived")
	requireKind(t, err, KindValidation)
	updated, err := svc.SetStatus(ctx, msg.ID, "pending")
	require.NoError(t, err)
	assert.Equal(t, models.ContactPending, updated.Status)

	require.NoError(t, svc.Delete(ctx, msg.ID))
	requireKind(t, svc.Delete(ctx, msg.ID), KindNotFound)
	_, err = svc.Get(ctx, msg.ID)
	requireKind(t, err, KindNotFound)
}

func TestContact_WarnsWithoutAdminAddress(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	sink := &recordingSink{}
	svc := NewContactService(memory.New(), sink, &fakeNotifier{}, nil, "", zap.New(core))
	assert.Equal(t, 1, logs.FilterMessage("admin email not configured, contact notices will not be sent").Len())

	_, err := svc.Submit(context.Background(), sampleContact, Origin{})
	require.NoError(t, err)
	events := sink.Events()
	require.Len(t, events, 1)
	assert.Equal(t, EventContactAutoReply, events[0].Type)
	assert.Equal(t, 1, logs.FilterMessage("contact admin notice skipped, no admin email configured").Len())
}

func TestContact_ListAndStats(t *testing.T) {
	svc, _, _ := newContactService(t, nil)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 3; i++ {
		msg, err := svc.Submit(ctx, sampleContact, Origin{})
		require.NoError(t, err)
		ids = append(ids, msg.ID)
	}
	_, err := svc.Get(ctx, ids[0])
	require.NoError(t, err)
	_, err = svc.Reply(ctx, ids[1], "Done and dusted.")
	require.NoError(t, err)

	all, err := svc.List(ctx, 0, 0, "")
	require.NoError(t, err)
	assert.Len(t, all.Contacts, 3)
	assert.EqualValues(t, 3, all.Pagination.Total)
	assert.Equal(t, "totalContacts", all.Pagination.TotalKey)

	pending, err := svc.List(ctx, 1, 20, "pending")
	require.NoError(t, err)
	require.Len(t, pending.Contacts, 1)
	assert.Equal(t, ids[2], pending.Contacts[0].ID)

	past, err := svc.List(ctx, 7, 2, "")
	require.NoError(t, err)
	assert.Len(t, past.Contacts, 1)
	assert.Equal(t, 2, past.Pagination.CurrentPage)
	assert.False(t, past.Pagination.HasNext)

	unknown, err := svc.List(ctx, 1, 20, "bogus")
	require.NoError(t, err)
	assert.Len(t, unknown.Contacts, 3)

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, ContactStats{Total: 3, Pending: 1, Read: 1, Replied: 1, RecentWeek: 3}, stats)
}

func TestDispatcher_DeliversAndDrains(t *testing.T) {
	notifier := &fakeNotifier{}
	d := NewDispatcher(notifier, 2, 8, time.Second, zap.NewNop())

	for i := 0; i < 5; i++ {
		require.NoError(t, d.Enqueue(Event{Type: EventWelcome, To: "a@example.com"}))
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, d.Shutdown(ctx))
	assert.Len(t, notifier.Sent(), 5)

	assert.ErrorIs(t, d.Enqueue(Event{Type: EventWelcome}), ErrDispatcherClosed)
}

// blockingNotifier holds every delivery until release is closed.
type blockingNotifier struct {
	started chan struct{}
	release chan struct{}
}

func (b *blockingNotifier) Notify(ctx context.Context, ev Event) error {
	b.started <- struct{}{}
	<-b.release
	return nil
}

func TestDispatcher_DropsWhenFull(t *testing.T) {
	n := &blockingNotifier{started: make(chan struct{}, 1), release: make(chan struct{})}
	d := NewDispatcher(n, 1, 1, time.Second, zap.NewNop())

	require.NoError(t, d.Enqueue(Event{Type: EventWelcome}))
	<-n.started // worker busy
	require.NoError(t, d.Enqueue(Event{Type: EventWelcome}))
	assert.ErrorIs(t, d.Enqueue(Event{Type: EventWelcome}), ErrQueueFull)

	// the queued event starts once the first one is released
	close(n.release)
	require.NoError(t, d.Shutdown(context.Background()))
}

type captureMailer struct{ mails []utils.Mail }

func (c *captureMailer) Send(ctx context.Context, m utils.Mail) error {
	c.mails = append(c.mails, m)
	return nil
}

func TestMailNotifier_RendersTemplates(t *testing.T) {
	mailer := &captureMailer{}
	n := NewMailNotifier(mailer, "Web Dev Hub", "http://site.test")

	err := n.Notify(context.Background(), Event{
		Type: EventContactReply, To: "jane@example.com", Name: "Jane",
		Title: "Partnership", Message: "line one\nline <two>", Reply: "Sure!",
	})
	require.NoError(t, err)
	require.Len(t, mailer.mails, 1)
	m := mailer.mails[0]
	assert.Equal(t, "💬 Re: Partnership", m.Subject)
	assert.Contains(t, m.HTML, "WEB DEV HUB")
	assert.Contains(t, m.HTML, "line one<br>line &lt;two&gt;")
	assert.Contains(t, m.HTML, "Sure!")

	assert.Error(t, n.Notify(context.Background(), Event{Type: EventWelcome}))
	assert.Error(t, n.Notify(context.Background(), Event{Type: "unknown", To: "x@example.com"}))
}
