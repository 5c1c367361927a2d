// Package session logs in to the catalog and hands out authenticated sessions.
package session

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/publicsuffix"
	"golang.org/x/time/rate"

	"gardener/internal/domain"
)

const (
	loginPath       = "takelogin.php"
	maxBodySize     = 4 << 20
	DefaultAttempts = 3
)

type CredentialStore interface {
	Load() (*domain.Credentials, error)
	Save(creds *domain.Credentials) error
}

type Prompter interface {
	Prompt() (*domain.Credentials, error)
	Notify(msg string)
}

// Config holds session provider configuration.
type Config struct {
	BaseURL           string
	Timeout           time.Duration
	RequestsPerSecond float64
	UserAgent         string
	LoginFailedMarker string
	LoggedInMarker    string
	Interactive       bool
	MaxAttempts       int
}

type Provider struct {
	cfg      Config
	baseURL  *url.URL
	store    CredentialStore
	prompter Prompter
	logger   *slog.Logger

	creds *domain.Credentials
}

// NewProvider creates a provider. prompter may be nil in non-interactive mode.
func NewProvider(cfg Config, store CredentialStore, prompter Prompter, logger *slog.Logger) (*Provider, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultAttempts
	}

	return &Provider{
		cfg:      cfg,
		baseURL:  base,
		store:    store,
		prompter: prompter,
		logger:   logger.With("component", "session"),
	}, nil
}

// Acquire resolves credentials and logs in, returning a session that keeps
// the resulting cookies.
func (p *Provider) Acquire(ctx context.Context) (*Session, error) {
	creds, err := p.Credentials(ctx)
	if err != nil {
		return nil, err
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}
	client := &http.Client{Timeout: p.cfg.Timeout, Jar: jar}

	body, err := p.login(ctx, client, creds)
	if err != nil {
		return nil, fmt.Errorf("%w: login: %w", domain.ErrCatalogUnavailable, err)
	}
	if p.cfg.LoginFailedMarker != "" && strings.Contains(body, p.cfg.LoginFailedMarker) {
		return nil, fmt.Errorf("%w: login rejected for %s", domain.ErrInvalidCredentials, creds.Username)
	}

	limit := rate.Inf
	if p.cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(p.cfg.RequestsPerSecond)
	}

	p.logger.Info("session acquired", "username", creds.Username)

	return &Session{
		client:    client,
		baseURL:   p.baseURL,
		limiter:   rate.NewLimiter(limit, 1),
		userAgent: p.cfg.UserAgent,
	}, nil
}

// Credentials returns saved credentials if they still validate, otherwise
// prompts for new ones when running interactively.
func (p *Provider) Credentials(ctx context.Context) (*domain.Credentials, error) {
	if p.creds != nil {
		return p.creds, nil
	}

	saved, err := p.store.Load()
	if err != nil {
		p.logger.Error("cannot read saved credentials", "error", err)
	}
	if saved != nil && p.Validate(ctx, saved) {
		p.creds = saved
		return saved, nil
	}

	if !p.cfg.Interactive || p.prompter == nil {
		return nil, fmt.Errorf("%w: no valid saved credentials", domain.ErrInvalidCredentials)
	}

	p.prompter.Notify("Cannot read saved credentials or they are invalid. Please input.")
	for attempt := 1; attempt <= p.cfg.MaxAttempts; attempt++ {
		creds, err := p.prompter.Prompt()
		if err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrInvalidCredentials, err)
		}

		if p.Validate(ctx, creds) {
			if err := p.store.Save(creds); err != nil {
				p.logger.Error("cannot save credentials", "error", err)
			} else {
				p.logger.Info("saved credentials")
			}
			p.creds = creds
			return creds, nil
		}

		p.logger.Error("credentials are invalid", "attempt", attempt)
		p.prompter.Notify("Credentials are invalid. Please retry.")
	}

	p.logger.Error("cannot get valid credentials", "max_attempts", p.cfg.MaxAttempts)
	return nil, fmt.Errorf("%w: gave up after %d attempts", domain.ErrInvalidCredentials, p.cfg.MaxAttempts)
}

// Validate performs a throwaway login and inspects the response body.
func (p *Provider) Validate(ctx context.Context, creds *domain.Credentials) bool {
	if creds.Empty() {
		return false
	}

	body, err := p.login(ctx, &http.Client{Timeout: p.cfg.Timeout}, creds)
	if err != nil {
		p.logger.Error("login request failed", "error", err)
		return false
	}

	switch {
	case p.cfg.LoginFailedMarker != "" && strings.Contains(body, p.cfg.LoginFailedMarker):
		p.logger.Error("login failed, probably because a CAPTCHA is required")
		return false
	case p.cfg.LoggedInMarker != "" && strings.Contains(body, p.cfg.LoggedInMarker):
		p.logger.Info("login succeeded")
		return true
	default:
		p.logger.Error("login failed due to unknown reason")
		return false
	}
}

func (p *Provider) login(ctx context.Context, client *http.Client, creds *domain.Credentials) (string, error) {
	form := url.Values{
		"username":  {creds.Username},
		"password":  {creds.Password},
		"checkcode": {creds.CheckCode},
	}
	endpoint := p.baseURL.ResolveReference(&url.URL{Path: loginPath})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if p.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", p.cfg.UserAgent)
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return "", fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	return string(data), nil
}
