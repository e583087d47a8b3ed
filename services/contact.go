package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/cppla/webdevhub/models"
	"github.com/cppla/webdevhub/storage"
	"github.com/cppla/webdevhub/utils"
)

// CaptchaVerifier checks a captcha answer once.
type CaptchaVerifier interface {
	Verify(id, answer string) bool
}

// ContactInput is a public contact form submission.
type ContactInput struct {
	Name          string
	Email         string
	Subject       string
	Message       string
	CaptchaID     string
	CaptchaAnswer string
}

// Origin records where a submission came from.
type Origin struct {
	IP        string
	UserAgent string
}

// ContactList is one page of contact messages.
type ContactList struct {
	Contacts   []models.ContactMessage
	Pagination utils.Pagination
}

// ContactStats counts messages by status.
type ContactStats struct {
	Total      int64 `json:"total"`
	Pending    int64 `json:"pending"`
	Read       int64 `json:"read"`
	Replied    int64 `json:"replied"`
	RecentWeek int64 `json:"recentWeek"`
}

// ContactService handles the contact inbox.
type ContactService struct {
	store    storage.ContactStore
	events   EventSink
	notifier Notifier
	captcha  CaptchaVerifier
	admin    string
	log      *zap.Logger
}

// NewContactService wires the inbox. events takes fire-and-forget notices, notifier sends
// admin replies synchronously. A nil captcha disables the captcha gate.
func NewContactService(store storage.ContactStore, events EventSink, notifier Notifier, captcha CaptchaVerifier, adminEmail string, log *zap.Logger) *ContactService {
	if events != nil && adminEmail == "" {
		log.Warn("admin email not configured, contact notices will not be sent")
	}
	return &ContactService{
		store:    store,
		events:   events,
		notifier: notifier,
		captcha:  captcha,
		admin:    adminEmail,
		log:      log,
	}
}

// CaptchaRequired reports whether Submit expects a captcha answer.
func (s *ContactService) CaptchaRequired() bool { return s.captcha != nil }

// Submit stores a message and queues the admin notice and the auto-reply.
func (s *ContactService) Submit(ctx context.Context, in ContactInput, origin Origin) (*models.ContactMessage, error) {
	if s.captcha != nil && !s.captcha.Verify(in.CaptchaID, strings.TrimSpace(in.CaptchaAnswer)) {
		return nil, validationError("captchaAnswer", "Invalid or expired captcha")
	}
	msg := &models.ContactMessage{
		Name:      utils.PlainText(in.Name),
		Email:     strings.ToLower(strings.TrimSpace(in.Email)),
		Subject:   utils.PlainText(in.Subject),
		Message:   utils.PlainText(in.Message),
		IPAddress: origin.IP,
		UserAgent: origin.UserAgent,
		Status:    models.ContactPending,
	}
	if msg.Name == "" || msg.Subject == "" || msg.Message == "" {
		return nil, validationError("message", "Name, subject and message are required")
	}
	if err := s.store.CreateContact(ctx, msg); err != nil {
		return nil, internal("failed to save contact message", err)
	}

	if s.events != nil {
		notices := []Event{
			{Type: EventContactAutoReply, To: msg.Email, Name: msg.Name, Title: msg.Subject, Message: msg.Message},
		}
		if s.admin != "" {
			notices = append(notices, Event{
				Type: EventContactAdmin, To: s.admin, Name: msg.Name, Email: msg.Email,
				Title: msg.Subject, Message: msg.Message,
			})
		} else {
			s.log.Warn("contact admin notice skipped, no admin email configured", zap.String("contact", msg.ID))
		}
		for _, ev := range notices {
			if err := s.events.Enqueue(ev); err != nil {
				s.log.Warn("contact notification not queued", zap.String("type", string(ev.Type)), zap.String("contact", msg.ID), zap.Error(err))
			}
		}
	}
	return msg, nil
}

// List pages the inbox newest first. Unknown statuses are ignored.
func (s *ContactService) List(ctx context.Context, page, pageSize int, status string) (ContactList, error) {
	page, pageSize = normalizePage(page, pageSize, 20)
	st := models.ContactStatus(status)
	if !st.Valid() {
		st = ""
	}
	msgs, total, err := s.store.ListContacts(ctx, st, (page-1)*pageSize, pageSize)
	if err != nil {
		return ContactList{}, internal("failed to list contact messages", err)
	}
	if last := lastPage(pageSize, total); page > last {
		page = last
		if msgs, total, err = s.store.ListContacts(ctx, st, (page-1)*pageSize, pageSize); err != nil {
			return ContactList{}, internal("failed to list contact messages", err)
		}
	}
	return ContactList{Contacts: msgs, Pagination: utils.NewPagination(page, pageSize, total, "totalContacts")}, nil
}

// Get returns one message, marking it read on first view.
func (s *ContactService) Get(ctx context.Context, id string) (*models.ContactMessage, error) {
	msg, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if msg.Status == models.ContactPending {
		msg.Status = models.ContactRead
		msg.UpdatedAt = time.Now()
		if err := s.store.SaveContact(ctx, msg); err != nil {
			return nil, internal("failed to update contact message", err)
		}
	}
	return msg, nil
}

// Reply mails reply to the submitter and records it. The status only changes once the mail is sent.
func (s *ContactService) Reply(ctx context.Context, id, reply string) (*models.ContactMessage, error) {
	msg, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return nil, validationError("replyMessage", "Reply message is required")
	}

	ev := Event{
		Type:    EventContactReply,
		To:      msg.Email,
		Name:    msg.Name,
		Title:   msg.Subject,
		Message: msg.Message,
		Reply:   reply,
	}
	if err := s.notifier.Notify(ctx, ev); err != nil {
		s.log.Error("contact reply not delivered", zap.String("contact", msg.ID), zap.Error(err))
		return nil, &Error{Kind: KindDeliveryFailed, Message: "Failed to send reply email. Please try again.", Err: err}
	}

	now := time.Now()
	msg.Status = models.ContactReplied
	msg.ReplyMessage = reply
	msg.RepliedAt = &now
	msg.UpdatedAt = now
	if err := s.store.SaveContact(ctx, msg); err != nil {
		return nil, internal("failed to record reply", err)
	}
	return msg, nil
}

// SetStatus overrides the status.
func (s *ContactService) SetStatus(ctx context.Context, id, status string) (*models.ContactMessage, error) {
	st := models.ContactStatus(status)
	if !st.Valid() {
		return nil, validationError("status", "Status must be one of: pending, read, replied")
	}
	msg, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	msg.Status = st
	msg.UpdatedAt = time.Now()
	if err := s.store.SaveContact(ctx, msg); err != nil {
		return nil, internal("failed to update contact message", err)
	}
	return msg, nil
}

// Delete removes a message permanently.
func (s *ContactService) Delete(ctx context.Context, id string) error {
	if err := s.store.DeleteContact(ctx, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return notFound("Contact message not found")
		}
		return internal("failed to delete contact message", err)
	}
	return nil
}

// Stats counts the inbox by status plus messages from the last seven days.
func (s *ContactService) Stats(ctx context.Context) (ContactStats, error) {
	var (
		st  ContactStats
		err error
	)
	counts := []struct {
		dst    *int64
		status models.ContactStatus
		since  time.Time
	}{
		{&st.Total, "", time.Time{}},
		{&st.Pending, models.ContactPending, time.Time{}},
		{&st.Read, models.ContactRead, time.Time{}},
		{&st.Replied, models.ContactReplied, time.Time{}},
		{&st.RecentWeek, "", time.Now().AddDate(0, 0, -7)},
	}
	for _, c := range counts {
		if *c.dst, err = s.store.CountContacts(ctx, c.status, c.since); err != nil {
			return ContactStats{}, internal("failed to count contact messages", err)
		}
	}
	return st, nil
}

func (s *ContactService) load(ctx context.Context, id string) (*models.ContactMessage, error) {
	msg, err := s.store.GetContact(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, notFound("Contact message not found")
		}
		return nil, internal("failed to load contact message", err)
	}
	return msg, nil
}
