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

// PasswordHasher hashes and verifies credentials.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) (bool, error)
}

// AuthResult is a signed-in session.
type AuthResult struct {
	Token string
	User  *models.User
}

// UserStats summarizes what a user has authored.
type UserStats struct {
	BlogPosts    int64 `json:"blogPosts"`
	ForumThreads int64 `json:"forumThreads"`
	Comments     int64 `json:"comments"`
}

// PublicProfile is the publicly visible view of an account.
type PublicProfile struct {
	User  *models.User
	Stats UserStats
}

// IdentityService owns accounts and sessions.
type IdentityService struct {
	users   storage.UserStore
	content storage.ContentStore
	hasher  PasswordHasher
	tokens  *utils.TokenManager
	revoked *utils.RevocationList
	events  EventSink
	log     *zap.Logger
}

// NewIdentityService wires the account directory.
func NewIdentityService(users storage.UserStore, content storage.ContentStore, hasher PasswordHasher, tokens *utils.TokenManager, revoked *utils.RevocationList, events EventSink, log *zap.Logger) *IdentityService {
	return &IdentityService{
		users:   users,
		content: content,
		hasher:  hasher,
		tokens:  tokens,
		revoked: revoked,
		events:  events,
		log:     log,
	}
}

var errInvalidCredentials = unauthorized("Invalid credentials")

// Register creates an account and signs it in.
func (s *IdentityService) Register(ctx context.Context, username, email, password string) (*AuthResult, error) {
	username = strings.TrimSpace(username)
	email = strings.ToLower(strings.TrimSpace(email))

	if _, err := s.users.FindUserByEmail(ctx, email); err == nil {
		return nil, conflict("User already exists. Please sign in.")
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, internal("failed to check email", err)
	}
	exists, err := s.users.UsernameExists(ctx, username)
	if err != nil {
		return nil, internal("failed to check username", err)
	}
	if exists {
		return nil, conflict("User already exists. Please sign in.")
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, internal("failed to hash password", err)
	}
	user := &models.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		IsActive:     true,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return nil, conflict("User already exists. Please sign in.")
		}
		return nil, internal("failed to create user", err)
	}

	if s.events != nil {
		if err := s.events.Enqueue(Event{Type: EventWelcome, To: user.Email, Name: user.Username}); err != nil {
			s.log.Warn("welcome notification not queued", zap.String("user", user.ID), zap.Error(err))
		}
	}
	return s.issue(user)
}

// Login verifies credentials by email or username. Every failure looks the same to the caller.
func (s *IdentityService) Login(ctx context.Context, identifier, password string) (*AuthResult, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || password == "" {
		return nil, errInvalidCredentials
	}
	user, err := s.users.FindUserByLogin(ctx, identifier)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, errInvalidCredentials
		}
		return nil, internal("failed to load user", err)
	}
	if !user.IsActive || user.PasswordHash == "" {
		return nil, errInvalidCredentials
	}
	ok, err := s.hasher.Compare(user.PasswordHash, password)
	if err != nil {
		return nil, internal("failed to verify password", err)
	}
	if !ok {
		return nil, errInvalidCredentials
	}

	now := time.Now()
	user.LastLogin = &now
	if err := s.users.SaveUser(ctx, user); err != nil {
		return nil, internal("failed to record login", err)
	}
	return s.issue(user)
}

func (s *IdentityService) issue(user *models.User) (*AuthResult, error) {
	token, err := s.tokens.Generate(user.ID, user.Username)
	if err != nil {
		return nil, internal("failed to generate token", err)
	}
	return &AuthResult{Token: token, User: user}, nil
}

// Authenticate resolves a bearer token to an active user.
func (s *IdentityService) Authenticate(ctx context.Context, token string) (*models.User, *utils.Claims, error) {
	if s.revoked.IsRevoked(ctx, token) {
		return nil, nil, unauthorized("Token has been revoked")
	}
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return nil, nil, unauthorized("Invalid token")
	}
	user, err := s.users.GetUser(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil, unauthorized("Invalid token")
		}
		return nil, nil, internal("failed to load user", err)
	}
	if !user.IsActive {
		return nil, nil, unauthorized("Account is deactivated")
	}
	return user, claims, nil
}

// Logout revokes token until it would have expired.
func (s *IdentityService) Logout(ctx context.Context, token string, claims *utils.Claims) error {
	if err := s.revoked.Revoke(ctx, token, s.tokens.ExpiresAt(claims)); err != nil {
		return internal("failed to revoke token", err)
	}
	return nil
}

// Profile returns the caller's own account.
func (s *IdentityService) Profile(ctx context.Context, id string) (*models.User, error) {
	user, err := s.users.GetUser(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, notFound("User not found")
		}
		return nil, internal("failed to load user", err)
	}
	return user, nil
}

// PublicProfile returns an active user with authoring stats.
func (s *IdentityService) PublicProfile(ctx context.Context, id string) (*PublicProfile, error) {
	user, err := s.Profile(ctx, id)
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, notFound("User not found")
	}

	var stats UserStats
	if stats.BlogPosts, err = s.content.CountItems(ctx, storage.ContentQuery{Kind: models.KindBlog, PublishedOnly: true, AuthorID: id}); err != nil {
		return nil, internal("failed to count posts", err)
	}
	if stats.ForumThreads, err = s.content.CountItems(ctx, storage.ContentQuery{Kind: models.KindForum, AuthorID: id}); err != nil {
		return nil, internal("failed to count threads", err)
	}
	if stats.Comments, err = s.content.CountEngagementsByAuthor(ctx, id); err != nil {
		return nil, internal("failed to count comments", err)
	}
	return &PublicProfile{User: user, Stats: stats}, nil
}

// UpdateProfile changes bio and avatar. Nil leaves a field unchanged.
func (s *IdentityService) UpdateProfile(ctx context.Context, id string, bio, avatar *string) (*models.User, error) {
	user, err := s.Profile(ctx, id)
	if err != nil {
		return nil, err
	}
	if bio != nil {
		user.Bio = utils.PlainText(*bio)
	}
	if avatar != nil {
		user.AvatarURL = strings.TrimSpace(*avatar)
	}
	if err := s.users.SaveUser(ctx, user); err != nil {
		return nil, internal("failed to update profile", err)
	}
	return user, nil
}

// ChangePassword replaces the password after verifying the current one.
func (s *IdentityService) ChangePassword(ctx context.Context, id, current, next string) error {
	user, err := s.Profile(ctx, id)
	if err != nil {
		return err
	}
	ok := false
	if user.PasswordHash != "" {
		if ok, err = s.hasher.Compare(user.PasswordHash, current); err != nil {
			return internal("failed to verify password", err)
		}
	}
	if !ok {
		return validationError("currentPassword", "Current password is incorrect")
	}
	hash, err := s.hasher.Hash(next)
	if err != nil {
		return internal("failed to hash password", err)
	}
	user.PasswordHash = hash
	if err := s.users.SaveUser(ctx, user); err != nil {
		return internal("failed to update password", err)
	}
	return nil
}

// Deactivate disables the account and revokes the current token. Authored content is kept.
func (s *IdentityService) Deactivate(ctx context.Context, id, token string, claims *utils.Claims) error {
	user, err := s.Profile(ctx, id)
	if err != nil {
		return err
	}
	user.IsActive = false
	if err := s.users.SaveUser(ctx, user); err != nil {
		return internal("failed to deactivate account", err)
	}
	if token != "" {
		if err := s.revoked.Revoke(ctx, token, s.tokens.ExpiresAt(claims)); err != nil {
			s.log.Warn("failed to revoke token of deactivated account", zap.String("user", id), zap.Error(err))
		}
	}
	return nil
}
