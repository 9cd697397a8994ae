package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/syncveil/apiserver/config"
)

// Mailer delivers the verification email. It is an external collaborator:
// a delivery failure never rolls back the signup that triggered it.
type Mailer interface {
	SendVerification(ctx context.Context, toEmail, token string) error
}

// NewMailer returns the Brevo API mailer when an API key is configured and
// a log-only mailer otherwise, so development never depends on an email
// provider.
func NewMailer(cfg config.MailerConfig, logger *slog.Logger) Mailer {
	if strings.TrimSpace(cfg.APIKey) != "" {
		return NewBrevoMailer(cfg)
	}
	return &LogMailer{logger: logger, baseURL: cfg.BaseURL}
}

const brevoEndpoint = "https://api.brevo.com/v3/smtp/email"

// BrevoMailer sends transactional email through the Brevo HTTP API.
type BrevoMailer struct {
	client      *http.Client
	endpoint    string
	apiKey      string
	fromAddress string
	fromName    string
	baseURL     string
}

func NewBrevoMailer(cfg config.MailerConfig) *BrevoMailer {
	return &BrevoMailer{
		client:      &http.Client{Timeout: 10 * time.Second},
		endpoint:    brevoEndpoint,
		apiKey:      cfg.APIKey,
		fromAddress: cfg.FromAddress,
		fromName:    cfg.FromName,
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
	}
}

func (m *BrevoMailer) SendVerification(ctx context.Context, toEmail, token string) error {
	link := verificationLink(m.baseURL, token)
	payload := map[string]any{
		"sender":  map[string]string{"email": m.fromAddress, "name": m.fromName},
		"to":      []map[string]string{{"email": toEmail}},
		"subject": "Verify your email address",
		"htmlContent": fmt.Sprintf(
			`<p>Welcome! Confirm your email address by opening the link below within 24 hours.</p><p><a href="%s">Verify email</a></p>`,
			link,
		),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("api-key", m.apiKey)
	req.Header.Set("accept", "application/json")
	req.Header.Set("content-type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("send verification email: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("send verification email: unexpected status %d", resp.StatusCode)
	}
	return nil
}

// LogMailer logs the verification link instead of sending it. The token is
// deliberately not redacted here: in dev the log line is how you verify.
type LogMailer struct {
	logger  *slog.Logger
	baseURL string
}

func (m *LogMailer) SendVerification(_ context.Context, toEmail, token string) error {
	m.logger.Info("verification email suppressed, no mailer configured",
		"to", toEmail,
		"link", verificationLink(strings.TrimRight(m.baseURL, "/"), token),
	)
	return nil
}

func verificationLink(baseURL, token string) string {
	return fmt.Sprintf("%s/auth/verify?token=%s", baseURL, token)
}
