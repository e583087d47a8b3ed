package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cppla/webdevhub/models"
	"github.com/cppla/webdevhub/storage"
	"github.com/cppla/webdevhub/utils"
)

// ContentKind describes what a content type supports. The engine branches on
// these capabilities instead of on the concrete type.
type ContentKind struct {
	Kind           models.ContentKind
	Noun           string
	EngagementNoun string
	// Key names one item in responses and messages, e.g. "post". Keys is the plural.
	Key  string
	Keys string
	// EngagementKey and EngagementKeys name engagements the same way.
	EngagementKey  string
	EngagementKeys string
	// TotalKey names the pagination total, e.g. totalPosts.
	TotalKey string
	// PathPrefix builds links in notifications.
	PathPrefix string

	RequiresPublished bool
	SupportsLocking   bool
	SupportsCategory  bool
	TracksActivity    bool
	RendersMarkdown   bool
	EngagementMaxLen  int
	EngagementEvent   EventType
}

var (
	BlogKind = ContentKind{
		Kind:              models.KindBlog,
		Noun:              "Blog post",
		EngagementNoun:    "Comment",
		Key:               "post",
		Keys:              "posts",
		EngagementKey:     "comment",
		EngagementKeys:    "comments",
		TotalKey:          "totalPosts",
		PathPrefix:        "blog",
		RequiresPublished: true,
		RendersMarkdown:   true,
		EngagementMaxLen:  1000,
		EngagementEvent:   EventCommentAdded,
	}
	ForumKind = ContentKind{
		Kind:             models.KindForum,
		Noun:             "Forum thread",
		EngagementNoun:   "Reply",
		Key:              "thread",
		Keys:             "threads",
		EngagementKey:    "reply",
		EngagementKeys:   "replies",
		TotalKey:         "totalThreads",
		PathPrefix:       "forum",
		SupportsLocking:  true,
		SupportsCategory: true,
		TracksActivity:   true,
		EngagementMaxLen: 2000,
		EngagementEvent:  EventReplyAdded,
	}
)

const (
	maxTitleLen    = 200
	maxCategoryLen = 50
)

// ItemInput carries the editable fields of an item. Fields a kind does not support are ignored.
type ItemInput struct {
	Title     string
	Body      string
	ImageURL  string
	Tags      []string
	Published *bool
	Category  string
}

// ListParams selects one page of a listing.
type ListParams struct {
	Page     int
	PageSize int
	// Category filters forum threads; empty or "all" means every category.
	Category string
	AuthorID string
}

// ListResult is one page of items plus pagination metadata.
type ListResult struct {
	Items      []models.ContentItem
	Pagination utils.Pagination
}

// EventSink accepts fire-and-forget notifications.
type EventSink interface {
	Enqueue(ev Event) error
}

// ContentService is the authorization-aware CRUD engine for one content kind.
type ContentService struct {
	kind    ContentKind
	items   storage.ContentStore
	users   storage.UserStore
	events  EventSink
	siteURL string
	log     *zap.Logger
}

// NewContentService creates the engine for kind.
func NewContentService(kind ContentKind, items storage.ContentStore, users storage.UserStore, events EventSink, siteURL string, log *zap.Logger) *ContentService {
	return &ContentService{
		kind:    kind,
		items:   items,
		users:   users,
		events:  events,
		siteURL: strings.TrimRight(siteURL, "/"),
		log:     log,
	}
}

// Kind returns the capability descriptor.
func (s *ContentService) Kind() ContentKind { return s.kind }

func (s *ContentService) notFound() *Error {
	return notFound(s.kind.Noun + " not found")
}

func (s *ContentService) locked(action string) *Error {
	return forbidden(strings.ToUpper(s.kind.Key[:1]) + s.kind.Key[1:] + " is locked and " + action)
}

// List returns one page of items. Blog listings hide drafts; forum listings put pinned threads first.
func (s *ContentService) List(ctx context.Context, p ListParams) (ListResult, error) {
	page, size := normalizePage(p.Page, p.PageSize, 10)
	q := storage.ContentQuery{
		Kind:          s.kind.Kind,
		PublishedOnly: s.kind.RequiresPublished,
		AuthorID:      p.AuthorID,
		Sort:          storage.SortNewest,
		Offset:        (page - 1) * size,
		Limit:         size,
	}
	if s.kind.SupportsCategory {
		if c := strings.TrimSpace(p.Category); c != "" && !strings.EqualFold(c, "all") {
			q.Category = c
		}
	}
	if s.kind.TracksActivity && p.AuthorID == "" {
		q.Sort = storage.SortPinnedActivity
	}

	items, total, err := s.items.ListItems(ctx, q)
	if err != nil {
		return ListResult{}, internal("failed to list items", err)
	}
	if last := lastPage(size, total); page > last {
		page = last
		q.Offset = (page - 1) * size
		if items, total, err = s.items.ListItems(ctx, q); err != nil {
			return ListResult{}, internal("failed to list items", err)
		}
	}
	if err := s.decorate(ctx, items...); err != nil {
		return ListResult{}, err
	}
	return ListResult{Items: items, Pagination: utils.NewPagination(page, size, total, s.kind.TotalKey)}, nil
}

// ListByAuthor lists an existing user's items, newest first.
func (s *ContentService) ListByAuthor(ctx context.Context, authorID string, page, pageSize int) (ListResult, error) {
	if _, err := s.users.GetUser(ctx, authorID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ListResult{}, notFound("User not found")
		}
		return ListResult{}, internal("failed to load user", err)
	}
	return s.List(ctx, ListParams{Page: page, PageSize: pageSize, AuthorID: authorID})
}

// Get fetches one item and counts the view. Drafts are visible to their
// author only; viewerID is empty for anonymous callers. The counter is a plain
// read-modify-write, so concurrent readers may lose increments.
func (s *ContentService) Get(ctx context.Context, id, viewerID string) (*models.ContentItem, error) {
	item, err := s.load(ctx, id, false)
	if err != nil {
		return nil, err
	}
	if s.kind.RequiresPublished && !item.IsPublished && (viewerID == "" || viewerID != item.AuthorID) {
		return nil, s.notFound()
	}
	item.Views++
	if err := s.items.SaveViews(ctx, item.ID, item.Views); err != nil {
		return nil, internal("failed to record view", err)
	}
	return s.decorated(ctx, item)
}

// Create stores a new item authored by authorID.
func (s *ContentService) Create(ctx context.Context, authorID string, in ItemInput) (*models.ContentItem, error) {
	title, body, err := s.cleanCore(in)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	item := &models.ContentItem{
		Kind:         s.kind.Kind,
		Title:        title,
		Body:         body,
		AuthorID:     authorID,
		CreatedAt:    now,
		UpdatedAt:    now,
		LastActivity: now,
	}
	if s.kind.RequiresPublished {
		item.ImageURL = strings.TrimSpace(in.ImageURL)
		item.Tags = normalizeTags(in.Tags)
		item.IsPublished = in.Published == nil || *in.Published
	}
	if s.kind.SupportsCategory {
		category, err := cleanCategory(in.Category)
		if err != nil {
			return nil, err
		}
		if category == "" {
			category = models.DefaultCategory
		}
		item.Category = category
	}

	if err := s.items.CreateItem(ctx, item); err != nil {
		return nil, internal("failed to create item", err)
	}
	return s.decorated(ctx, item)
}

// Update replaces the editable fields. Only the author may edit, and never a locked thread.
func (s *ContentService) Update(ctx context.Context, id, callerID string, in ItemInput) (*models.ContentItem, error) {
	item, err := s.load(ctx, id, false)
	if err != nil {
		return nil, err
	}
	if item.AuthorID != callerID {
		return nil, forbidden("Not authorized to update this " + s.kind.Key)
	}
	if s.kind.SupportsLocking && item.IsLocked {
		return nil, s.locked("cannot be edited")
	}

	title, body, err := s.cleanCore(in)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	item.Title = title
	item.Body = body
	item.UpdatedAt = now
	if s.kind.RequiresPublished {
		item.ImageURL = strings.TrimSpace(in.ImageURL)
		item.Tags = normalizeTags(in.Tags)
		if in.Published != nil {
			item.IsPublished = *in.Published
		}
	}
	if s.kind.SupportsCategory {
		category, err := cleanCategory(in.Category)
		if err != nil {
			return nil, err
		}
		if category != "" {
			item.Category = category
		}
	}
	if s.kind.TracksActivity {
		item.LastActivity = now
	}

	if err := s.items.SaveItem(ctx, item); err != nil {
		return nil, internal("failed to update item", err)
	}
	return s.decorated(ctx, item)
}

// Delete removes an item and all of its engagements. Only the author may delete, and never a locked thread.
func (s *ContentService) Delete(ctx context.Context, id, callerID string) error {
	item, err := s.load(ctx, id, false)
	if err != nil {
		return err
	}
	if item.AuthorID != callerID {
		return forbidden("Not authorized to delete this " + s.kind.Key)
	}
	if s.kind.SupportsLocking && item.IsLocked {
		return s.locked("cannot be deleted")
	}
	if err := s.items.DeleteItem(ctx, s.kind.Kind, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return s.notFound()
		}
		return internal("failed to delete item", err)
	}
	return nil
}

// AddEngagement appends a comment or reply and notifies the item's author.
func (s *ContentService) AddEngagement(ctx context.Context, id, authorID, text string) (*models.Engagement, error) {
	item, err := s.load(ctx, id, s.kind.RequiresPublished)
	if err != nil {
		return nil, err
	}
	if s.kind.SupportsLocking && item.IsLocked {
		return nil, s.locked("cannot accept new " + s.kind.EngagementKeys)
	}

	text = strings.TrimSpace(text)
	if text == "" || utf8.RuneCountInString(text) > s.kind.EngagementMaxLen {
		return nil, validationError("text", fmt.Sprintf("%s text is required and must not exceed %d characters", s.kind.EngagementNoun, s.kind.EngagementMaxLen))
	}

	now := time.Now()
	engagement := models.Engagement{
		ID:        uuid.NewString(),
		ItemID:    item.ID,
		AuthorID:  authorID,
		Text:      text,
		CreatedAt: now,
	}
	item.Engagements = append(item.Engagements, engagement)
	if s.kind.TracksActivity {
		item.LastActivity = now
	}
	if err := s.items.SaveItem(ctx, item); err != nil {
		return nil, internal("failed to save "+s.kind.EngagementKey, err)
	}

	authors, err := s.users.GetUsersByIDs(ctx, []string{item.AuthorID, authorID})
	if err != nil {
		s.log.Warn("failed to load engagement authors", zap.Error(err))
	}
	if actor, ok := authors[authorID]; ok {
		engagement.Author = actor.Ref()
	}
	s.notifyParentAuthor(item, authors, engagement)
	return &engagement, nil
}

func (s *ContentService) notifyParentAuthor(item *models.ContentItem, authors map[string]models.User, e models.Engagement) {
	if s.events == nil || item.AuthorID == e.AuthorID {
		return
	}
	owner, ok := authors[item.AuthorID]
	if !ok || !owner.IsActive || owner.Email == "" {
		return
	}
	actor := authors[e.AuthorID]
	ev := Event{
		Type:    s.kind.EngagementEvent,
		To:      owner.Email,
		Name:    owner.Username,
		Actor:   actor.Username,
		Title:   item.Title,
		Message: e.Text,
	}
	if s.siteURL != "" {
		ev.Link = s.siteURL + "/" + s.kind.PathPrefix + "/" + item.ID
	}
	if err := s.events.Enqueue(ev); err != nil {
		s.log.Warn("engagement notification not queued", zap.String("item", item.ID), zap.Error(err))
	}
}

// RemoveEngagement deletes a comment or reply. Its author and the item's author may remove it.
func (s *ContentService) RemoveEngagement(ctx context.Context, id, engagementID, callerID string) error {
	item, err := s.load(ctx, id, false)
	if err != nil {
		return err
	}
	idx := item.FindEngagement(engagementID)
	if idx < 0 {
		return notFound(s.kind.EngagementNoun + " not found")
	}
	if item.Engagements[idx].AuthorID != callerID && item.AuthorID != callerID {
		return forbidden("Not authorized to delete this " + s.kind.EngagementKey)
	}

	item.Engagements = append(item.Engagements[:idx], item.Engagements[idx+1:]...)
	if s.kind.TracksActivity {
		item.LastActivity = time.Now()
	}
	if err := s.items.SaveItem(ctx, item); err != nil {
		return internal("failed to remove "+s.kind.EngagementKey, err)
	}
	return nil
}

// Categories lists the distinct categories in use.
func (s *ContentService) Categories(ctx context.Context) ([]string, error) {
	if !s.kind.SupportsCategory {
		return []string{}, nil
	}
	cats, err := s.items.Categories(ctx, s.kind.Kind)
	if err != nil {
		return nil, internal("failed to list categories", err)
	}
	return cats, nil
}

// Moderate sets the pinned and locked flags. Nil leaves a flag unchanged.
func (s *ContentService) Moderate(ctx context.Context, id string, pinned, locked *bool) (*models.ContentItem, error) {
	if !s.kind.SupportsLocking {
		return nil, validationError("isLocked", s.kind.Noun+"s cannot be moderated")
	}
	item, err := s.load(ctx, id, false)
	if err != nil {
		return nil, err
	}
	if pinned != nil {
		item.IsPinned = *pinned
	}
	if locked != nil {
		item.IsLocked = *locked
	}
	if err := s.items.SaveItem(ctx, item); err != nil {
		return nil, internal("failed to moderate item", err)
	}
	return s.decorated(ctx, item)
}

func (s *ContentService) load(ctx context.Context, id string, publishedOnly bool) (*models.ContentItem, error) {
	item, err := s.items.GetItem(ctx, s.kind.Kind, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, s.notFound()
		}
		return nil, internal("failed to load item", err)
	}
	if publishedOnly && !item.IsPublished {
		return nil, s.notFound()
	}
	return item, nil
}

func (s *ContentService) decorated(ctx context.Context, item *models.ContentItem) (*models.ContentItem, error) {
	items := []models.ContentItem{*item}
	if err := s.decorate(ctx, items...); err != nil {
		return nil, err
	}
	return &items[0], nil
}

// decorate fills author display fields and the rendered body in place.
func (s *ContentService) decorate(ctx context.Context, items ...models.ContentItem) error {
	ids := make([]string, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.AuthorID)
		for _, e := range it.Engagements {
			ids = append(ids, e.AuthorID)
		}
	}
	users, err := s.users.GetUsersByIDs(ctx, utils.UniqueStrings(ids))
	if err != nil {
		return internal("failed to load authors", err)
	}
	for i := range items {
		if u, ok := users[items[i].AuthorID]; ok {
			items[i].Author = u.Ref()
		}
		for j := range items[i].Engagements {
			if u, ok := users[items[i].Engagements[j].AuthorID]; ok {
				items[i].Engagements[j].Author = u.Ref()
			}
		}
		if s.kind.RendersMarkdown {
			items[i].ContentHTML = utils.RenderMarkdown(items[i].Body)
		}
		if items[i].Engagements == nil {
			items[i].Engagements = []models.Engagement{}
		}
	}
	return nil
}

func (s *ContentService) cleanCore(in ItemInput) (string, string, error) {
	title := utils.PlainText(in.Title)
	if title == "" || utf8.RuneCountInString(title) > maxTitleLen {
		return "", "", validationError("title", "Title is required and must not exceed 200 characters")
	}
	body := strings.TrimSpace(in.Body)
	if body == "" {
		return "", "", validationError("content", "Content is required")
	}
	return title, body, nil
}

func cleanCategory(raw string) (string, error) {
	category := utils.PlainText(raw)
	if utf8.RuneCountInString(category) > maxCategoryLen {
		return "", validationError("category", "Category must be less than 50 characters")
	}
	return category, nil
}

func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		out = append(out, utils.PlainText(t))
	}
	return utils.UniqueStrings(out)
}

// normalizePage applies defaults for absent or non-positive values. There is no upper bound.
func normalizePage(page, size, defaultSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = defaultSize
	}
	return page, size
}

// lastPage is the highest page that holds items, or 1 when there are none.
// Requests past it are served that page.
func lastPage(size int, total int64) int {
	pages := int((total + int64(size) - 1) / int64(size))
	return max(pages, 1)
}
