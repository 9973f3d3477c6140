package email

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/dukerupert/tandem/internal/model"
)

const postmarkURL = "https://api.postmarkapp.com/email"

type Client struct {
	serverToken string
	fromEmail   string
	baseURL     string
	httpClient  *http.Client
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

func NewClient(serverToken, fromEmail, baseURL string, opts ...Option) *Client {
	c := &Client{
		serverToken: serverToken,
		fromEmail:   fromEmail,
		baseURL:     strings.TrimRight(baseURL, "/"),
		httpClient:  &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured returns true if the server token is set.
func (c *Client) Configured() bool {
	return c.serverToken != ""
}

type postmarkEmail struct {
	From     string `json:"From"`
	To       string `json:"To"`
	Subject  string `json:"Subject"`
	HtmlBody string `json:"HtmlBody"`
	TextBody string `json:"TextBody"`
	Tag      string `json:"Tag,omitempty"`
}

// SendAuthCode sends a one-time sign-in code.
func (c *Client) SendAuthCode(toEmail, code, purpose string, ttl time.Duration) error {
	var subject, action string
	switch purpose {
	case model.PurposeRegister:
		subject = "Welcome to Tandem"
		action = "finish creating your account"
	default:
		subject = "Your Tandem sign-in code"
		action = "sign in"
	}

	expires := humanize.RelTime(time.Now(), time.Now().Add(ttl), "", "from now")
	textBody := fmt.Sprintf("Use this code to %s:\n\n%s\n\nThe code expires %s.", action, code, expires)
	htmlBody := fmt.Sprintf(
		`<p>Use this code to %s:</p><p style="font-size:24px;letter-spacing:4px"><strong>%s</strong></p><p>The code expires %s.</p>`,
		action, html.EscapeString(code), expires,
	)

	return c.send(postmarkEmail{
		To:       toEmail,
		Subject:  subject,
		HtmlBody: htmlBody,
		TextBody: textBody,
		Tag:      "auth-code",
	})
}

// SendPartnerInvite emails an invitation link to a prospective partner.
func (c *Client) SendPartnerInvite(toEmail, inviterName, token string) error {
	if inviterName == "" {
		inviterName = "Your partner"
	}
	link := fmt.Sprintf("%s/invite?token=%s", c.baseURL, token)
	subject := fmt.Sprintf("%s invited you to Tandem", inviterName)
	textBody := fmt.Sprintf("%s wants to work on your relationship together.\n\nAccept the invitation:\n%s\n\nThis link expires in 7 days.", inviterName, link)
	htmlBody := fmt.Sprintf(
		`<p>%s wants to work on your relationship together.</p><p><a href="%s">Accept the invitation</a></p><p>This link expires in 7 days.</p>`,
		html.EscapeString(inviterName), html.EscapeString(link),
	)

	return c.send(postmarkEmail{
		To:       toEmail,
		Subject:  subject,
		HtmlBody: htmlBody,
		TextBody: textBody,
		Tag:      "partner-invite",
	})
}

// SendSurveySummary sends a scored survey to an admin address.
func (c *Client) SendSurveySummary(toEmail string, user *model.User, sum *model.SurveySummary) error {
	who := user.Email
	if user.Name != "" {
		who = fmt.Sprintf("%s <%s>", user.Name, user.Email)
	}
	subject := fmt.Sprintf("Survey submitted: %s", user.Email)
	if sum.Skipped {
		subject = fmt.Sprintf("Survey skipped: %s", user.Email)
	}

	var hb, tb strings.Builder
	fmt.Fprintf(&hb, `<p>%s submitted the survey %s.</p>`, html.EscapeString(who), humanize.Time(sum.UpdatedAt))
	fmt.Fprintf(&hb, `<p>Baseline health: <strong>%d</strong></p>`, sum.BaselineHealth)
	hb.WriteString(`<table border="1" cellpadding="4" cellspacing="0"><tr><th>Category</th><th>Score</th><th>Self rating</th><th>Wants improvement</th></tr>`)

	fmt.Fprintf(&tb, "%s submitted the survey.\nBaseline health: %d\n\n", who, sum.BaselineHealth)

	for _, cat := range model.Categories {
		g := sum.Goals[cat]
		rating, wants := goalText(g)
		fmt.Fprintf(&hb, `<tr><td>%s</td><td>%s</td><td>%s</td><td>%s</td></tr>`,
			html.EscapeString(string(cat)), humanize.FtoaWithDigits(sum.CategoryScores[cat], 2), rating, wants)
		fmt.Fprintf(&tb, "%s: %s (self rating %s, wants improvement %s)\n",
			cat, humanize.FtoaWithDigits(sum.CategoryScores[cat], 2), rating, wants)
	}
	hb.WriteString(`</table>`)

	return c.send(postmarkEmail{
		To:       toEmail,
		Subject:  subject,
		HtmlBody: hb.String(),
		TextBody: tb.String(),
		Tag:      "survey-summary",
	})
}

func goalText(g model.Goal) (rating, wants string) {
	rating, wants = "-", "-"
	if g.SelfRating != nil {
		rating = fmt.Sprintf("%d/5", *g.SelfRating)
	}
	if g.WantsImprovement != nil {
		wants = "no"
		if *g.WantsImprovement {
			wants = "yes"
		}
	}
	return rating, wants
}

func (c *Client) send(msg postmarkEmail) error {
	if !c.Configured() {
		return fmt.Errorf("email client not configured: missing server token")
	}
	msg.From = c.fromEmail

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal email: %w", err)
	}

	req, err := http.NewRequest("POST", postmarkURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Postmark-Server-Token", c.serverToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("postmark API error: status %d", resp.StatusCode)
	}

	return nil
}
