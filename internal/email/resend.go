package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sethvargo/go-retry"
)

const apiURL = "https://api.resend.com/emails"

type Client struct {
	apiKey     string
	fromEmail  string
	httpClient *http.Client
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

func NewClient(apiKey, fromEmail string, opts ...Option) *Client {
	c := &Client{
		apiKey:     apiKey,
		fromEmail:  fromEmail,
		httpClient: http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured returns true if the API key is set.
func (c *Client) Configured() bool {
	return c.apiKey != ""
}

type resendEmail struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
	Text    string `json:"text"`
}

// SendMagicLink sends a sign-in link. The admin variant targets the GP
// console; the login variant the investor portal.
func (c *Client) SendMagicLink(ctx context.Context, toEmail, verifyURL, purpose string) error {
	var subject, action string
	switch purpose {
	case "admin":
		subject = "Sign in to your Fundgate admin console"
		action = "sign in to the admin console"
	default:
		subject = "Sign in to your investor portal"
		action = "sign in to your investor portal"
	}

	textBody := fmt.Sprintf("Click the link below to %s:\n\n%s\n\nThis link expires in 15 minutes and can be used once.", action, verifyURL)
	htmlBody := fmt.Sprintf(
		`<p>Click the link below to %s:</p><p><a href="%s">%s</a></p><p>This link expires in 15 minutes and can be used once.</p>`,
		action, verifyURL, action,
	)

	return c.send(ctx, resendEmail{
		From:    c.fromEmail,
		To:      toEmail,
		Subject: subject,
		HTML:    htmlBody,
		Text:    textBody,
	})
}

// SendCapitalCallNotice notifies an investor of a new capital call.
func (c *Client) SendCapitalCallNotice(ctx context.Context, toEmail, fundName string, amountCents int64, dueDate time.Time) error {
	amount := fmt.Sprintf("$%d.%02d", amountCents/100, amountCents%100)
	subject := fmt.Sprintf("Capital call from %s", fundName)
	textBody := fmt.Sprintf(
		"%s has issued a capital call of %s, due %s.\n\nSign in to your investor portal to review and pay via ACH.",
		fundName, amount, dueDate.Format("January 2, 2006"),
	)
	htmlBody := fmt.Sprintf(
		`<p>%s has issued a capital call of <strong>%s</strong>, due %s.</p><p>Sign in to your investor portal to review and pay via ACH.</p>`,
		fundName, amount, dueDate.Format("January 2, 2006"),
	)

	return c.send(ctx, resendEmail{
		From:    c.fromEmail,
		To:      toEmail,
		Subject: subject,
		HTML:    htmlBody,
		Text:    textBody,
	})
}

// send posts to the Resend API, retrying transient failures (network errors
// and 5xx/429 responses) with exponential backoff.
func (c *Client) send(ctx context.Context, payload resendEmail) error {
	if !c.Configured() {
		return fmt.Errorf("email client not configured: missing API key")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal email: %w", err)
	}

	backoff := retry.WithMaxRetries(3, retry.NewExponential(500*time.Millisecond))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, "POST", apiURL, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.apiKey)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return retry.RetryableError(fmt.Errorf("send email: %w", err))
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return retry.RetryableError(fmt.Errorf("resend API error: status %d", resp.StatusCode))
		}
		if resp.StatusCode >= 400 {
			return fmt.Errorf("resend API error: status %d", resp.StatusCode)
		}
		return nil
	})
}
