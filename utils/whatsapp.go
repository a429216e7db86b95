package utils

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	models "github.com/phillip/contribution-pipeline-go/models"
)

// DefaultGraphURL is the WhatsApp Cloud API base.
const DefaultGraphURL = "https://graph.facebook.com/v18.0"

type whatsAppTextRequest struct {
	MessagingProduct string           `json:"messaging_product"`
	To               string           `json:"to"`
	Type             string           `json:"type"`
	Text             whatsAppTextBody `json:"text"`
}

type whatsAppTextBody struct {
	Body string `json:"body"`
}

// WhatsAppOption customises a WhatsAppClient.
type WhatsAppOption func(*WhatsAppClient)

func WithWhatsAppBaseURL(baseURL string) WhatsAppOption {
	return func(c *WhatsAppClient) {
		if baseURL != "" {
			c.baseURL = strings.TrimRight(baseURL, "/")
		}
	}
}

func WithWhatsAppHTTPClient(client HTTPClient) WhatsAppOption {
	return func(c *WhatsAppClient) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WhatsAppClient sends text messages through the WhatsApp Cloud API.
type WhatsAppClient struct {
	accessToken   string
	phoneNumberID string
	baseURL       string
	httpClient    HTTPClient
}

func NewWhatsAppClient(cfg models.WhatsAppConfig, timeout time.Duration, opts ...WhatsAppOption) (*WhatsAppClient, error) {
	if strings.TrimSpace(cfg.AccessToken) == "" {
		return nil, errors.New("whatsapp: access token is required")
	}
	if strings.TrimSpace(cfg.PhoneNumberID) == "" {
		return nil, errors.New("whatsapp: phone number id is required")
	}

	c := &WhatsAppClient{
		accessToken:   cfg.AccessToken,
		phoneNumberID: cfg.PhoneNumberID,
		baseURL:       DefaultGraphURL,
		httpClient:    &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

// SendConfirmation replies to the contributor's phone with a receipt summary.
func (c *WhatsAppClient) SendConfirmation(ctx context.Context, contribution *models.Contribution, campaignName string) error {
	if strings.TrimSpace(contribution.PhoneNumber) == "" {
		return errors.New("whatsapp: contribution has no phone number")
	}
	return c.SendText(ctx, contribution.PhoneNumber, ConfirmationText(contribution, campaignName))
}

// SendText delivers a plain text message to the given phone number.
func (c *WhatsAppClient) SendText(ctx context.Context, to, body string) error {
	jsonData, err := json.Marshal(whatsAppTextRequest{
		MessagingProduct: "whatsapp",
		To:               to,
		Type:             "text",
		Text:             whatsAppTextBody{Body: body},
	})
	if err != nil {
		return fmt.Errorf("whatsapp: marshal message: %w", err)
	}

	endpoint := fmt.Sprintf("%s/%s/messages", c.baseURL, url.PathEscape(c.phoneNumberID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("whatsapp: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("whatsapp: send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError("whatsapp", resp)
	}
	return nil
}

var amountPrinter = message.NewPrinter(language.English)

// ConfirmationText formats the reply sent after a WhatsApp contribution.
func ConfirmationText(c *models.Contribution, campaignName string) string {
	var b strings.Builder
	b.WriteString("✅ Contribution Confirmed!\n\n")
	b.WriteString(amountPrinter.Sprintf("Amount: KES %.2f\n", c.Amount))
	fmt.Fprintf(&b, "From: %s\nMember ID: %s\nPlatform: %s\n\n", c.SenderName, c.MemberID, c.Platform)
	if campaignName != "" {
		fmt.Fprintf(&b, "Thank you for your contribution to the %s campaign!", campaignName)
	} else {
		b.WriteString("Thank you for your contribution!")
	}
	return b.String()
}
