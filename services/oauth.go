package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
	"golang.org/x/oauth2/google"

	"github.com/cppla/webdevhub/config"
	"github.com/cppla/webdevhub/models"
	"github.com/cppla/webdevhub/storage"
	"github.com/cppla/webdevhub/utils"
)

const (
	githubUserURL   = "https://api.github.com/user"
	githubEmailsURL = "https://api.github.com/user/emails"
	googleUserURL   = "https://www.googleapis.com/oauth2/v2/userinfo"

	usernameMinLen = 3
	usernameMaxLen = 30
)

// OAuthProfile is the identity a provider vouches for.
type OAuthProfile struct {
	ID        string
	Username  string
	Email     string
	AvatarURL string
}

// OAuthService signs users in through GitHub or Google.
type OAuthService struct {
	cfg      config.AppConfig
	users    storage.UserStore
	identity *IdentityService
	states   *utils.StateStore
	log      *zap.Logger
}

// NewOAuthService creates the OAuth flow handler.
func NewOAuthService(cfg config.AppConfig, users storage.UserStore, identity *IdentityService, states *utils.StateStore, log *zap.Logger) *OAuthService {
	return &OAuthService{cfg: cfg, users: users, identity: identity, states: states, log: log}
}

func (s *OAuthService) oauthConfig(provider string) (*oauth2.Config, error) {
	base := strings.TrimRight(s.cfg.OAuthRedirectBase, "/")
	switch strings.ToLower(provider) {
	case "github":
		if s.cfg.GitHubClientID == "" || s.cfg.GitHubClientSecret == "" {
			return nil, validationError("provider", "github oauth not configured")
		}
		return &oauth2.Config{
			ClientID:     s.cfg.GitHubClientID,
			ClientSecret: s.cfg.GitHubClientSecret,
			RedirectURL:  fmt.Sprintf("%s/api/auth/oauth/github/callback", base),
			Scopes:       []string{"read:user", "user:email"},
			Endpoint:     github.Endpoint,
		}, nil
	case "google":
		if s.cfg.GoogleClientID == "" || s.cfg.GoogleClientSecret == "" {
			return nil, validationError("provider", "google oauth not configured")
		}
		return &oauth2.Config{
			ClientID:     s.cfg.GoogleClientID,
			ClientSecret: s.cfg.GoogleClientSecret,
			RedirectURL:  fmt.Sprintf("%s/api/auth/oauth/google/callback", base),
			Scopes:       []string{"openid", "profile", "email"},
			Endpoint:     google.Endpoint,
		}, nil
	default:
		return nil, validationError("provider", "unsupported provider: "+provider)
	}
}

// AuthURL returns the provider consent URL and the single-use state bound to it.
func (s *OAuthService) AuthURL(provider string) (string, string, error) {
	cfg, err := s.oauthConfig(provider)
	if err != nil {
		return "", "", err
	}
	state := uuid.NewString()
	if err := s.states.Save(state, 10*time.Minute); err != nil {
		return "", "", internal("failed to start oauth login", err)
	}
	return cfg.AuthCodeURL(state, oauth2.AccessTypeOffline), state, nil
}

// Callback exchanges code for a provider identity and signs the matching user in.
func (s *OAuthService) Callback(ctx context.Context, provider, code, state string) (*AuthResult, error) {
	if code == "" || state == "" {
		return nil, validationError("code", "missing code or state")
	}
	if !s.states.Consume(state) {
		return nil, validationError("state", "invalid or expired state")
	}
	cfg, err := s.oauthConfig(provider)
	if err != nil {
		return nil, err
	}
	token, err := cfg.Exchange(ctx, code)
	if err != nil {
		return nil, unauthorized("failed to exchange code")
	}

	client := cfg.Client(ctx, token)
	var profile *OAuthProfile
	switch strings.ToLower(provider) {
	case "github":
		profile, err = fetchGitHubUser(ctx, client)
	default:
		profile, err = fetchGoogleUser(ctx, client)
	}
	if err != nil {
		return nil, internal("failed to fetch provider profile", err)
	}

	user, err := s.findOrCreate(ctx, strings.ToLower(provider), profile)
	if err != nil {
		return nil, err
	}
	return s.identity.issue(user)
}

// findOrCreate matches by provider identity, then by email, and otherwise creates an account.
func (s *OAuthService) findOrCreate(ctx context.Context, provider string, p *OAuthProfile) (*models.User, error) {
	user, err := s.users.FindUserByProvider(ctx, provider, p.ID)
	switch {
	case err == nil:
	case !errors.Is(err, storage.ErrNotFound):
		return nil, internal("failed to load user", err)
	default:
		user = nil
		if email := strings.ToLower(strings.TrimSpace(p.Email)); email != "" {
			user, err = s.users.FindUserByEmail(ctx, email)
			if err != nil && !errors.Is(err, storage.ErrNotFound) {
				return nil, internal("failed to load user", err)
			}
			if err == nil {
				user.Provider = provider
				user.ProviderID = p.ID
			}
		}
	}

	if user == nil {
		return s.createOAuthUser(ctx, provider, p)
	}
	if !user.IsActive {
		return nil, unauthorized("Account is deactivated")
	}
	if user.AvatarURL == "" {
		user.AvatarURL = p.AvatarURL
	}
	now := time.Now()
	user.LastLogin = &now
	if err := s.users.SaveUser(ctx, user); err != nil {
		return nil, internal("failed to update user", err)
	}
	return user, nil
}

func (s *OAuthService) createOAuthUser(ctx context.Context, provider string, p *OAuthProfile) (*models.User, error) {
	username, err := s.ensureUniqueUsername(ctx, p.Username, provider, p.ID)
	if err != nil {
		return nil, err
	}
	email := strings.ToLower(strings.TrimSpace(p.Email))
	if email == "" {
		// email is unique; providers may withhold it
		email = fmt.Sprintf("%s_%s@users.noreply.invalid", provider, p.ID)
	}
	now := time.Now()
	user := &models.User{
		Username:   username,
		Email:      email,
		Provider:   provider,
		ProviderID: p.ID,
		AvatarURL:  p.AvatarURL,
		IsActive:   true,
		LastLogin:  &now,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return nil, conflict("User already exists. Please sign in.")
		}
		return nil, internal("failed to persist user", err)
	}
	if s.identity.events != nil {
		if err := s.identity.events.Enqueue(Event{Type: EventWelcome, To: email, Name: username}); err != nil {
			s.log.Warn("welcome notification not queued", zap.String("user", user.ID), zap.Error(err))
		}
	}
	return user, nil
}

func (s *OAuthService) ensureUniqueUsername(ctx context.Context, base, provider, id string) (string, error) {
	base = sanitizeUsername(base)
	if base == "" {
		base = sanitizeUsername(provider + "_" + id)
	}
	if len(base) < usernameMinLen {
		base = "user_" + base
	}
	// leave room for a numeric suffix
	if len(base) > usernameMaxLen-4 {
		base = strings.TrimRight(base[:usernameMaxLen-4], "_")
	}

	candidate := base
	for suffix := 1; ; suffix++ {
		exists, err := s.users.UsernameExists(ctx, candidate)
		if err != nil {
			return "", internal("failed to check username", err)
		}
		if !exists {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s_%d", base, suffix)
	}
}

func fetchGitHubUser(ctx context.Context, client *http.Client) (*OAuthProfile, error) {
	var payload struct {
		ID        int64  `json:"id"`
		Login     string `json:"login"`
		Email     string `json:"email"`
		AvatarURL string `json:"avatar_url"`
	}
	if err := getJSON(ctx, client, githubUserURL, &payload); err != nil {
		return nil, err
	}

	email := payload.Email
	if email == "" {
		email, _ = fetchGitHubEmail(ctx, client)
	}
	return &OAuthProfile{
		ID:        fmt.Sprintf("%d", payload.ID),
		Username:  payload.Login,
		Email:     email,
		AvatarURL: payload.AvatarURL,
	}, nil
}

func fetchGitHubEmail(ctx context.Context, client *http.Client) (string, error) {
	var emails []struct {
		Email    string `json:"email"`
		Primary  bool   `json:"primary"`
		Verified bool   `json:"verified"`
	}
	if err := getJSON(ctx, client, githubEmailsURL, &emails); err != nil {
		return "", err
	}
	for _, email := range emails {
		if email.Primary && email.Verified {
			return email.Email, nil
		}
	}
	if len(emails) > 0 {
		return emails[0].Email, nil
	}
	return "", nil
}

func fetchGoogleUser(ctx context.Context, client *http.Client) (*OAuthProfile, error) {
	var payload struct {
		ID      string `json:"id"`
		Email   string `json:"email"`
		Name    string `json:"name"`
		Picture string `json:"picture"`
	}
	if err := getJSON(ctx, client, googleUserURL, &payload); err != nil {
		return nil, err
	}
	return &OAuthProfile{
		ID:        payload.ID,
		Username:  fallback(strings.SplitN(payload.Email, "@", 2)[0], payload.Name),
		Email:     payload.Email,
		AvatarURL: payload.Picture,
	}, nil
}

func getJSON(ctx context.Context, client *http.Client, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: %s", url, resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func fallback(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// sanitizeUsername lowercases input and keeps only characters valid in a username.
func sanitizeUsername(input string) string {
	input = strings.ToLower(strings.TrimSpace(input))
	var b strings.Builder
	for _, r := range input {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '_' || r == '-' || r == '.' || r == ' ':
			b.WriteRune('_')
		}
	}
	return strings.Trim(b.String(), "_")
}
