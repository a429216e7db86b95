package parser

import "strings"

// WhatsAppParser parses free-form WhatsApp message bodies with the full
// platform cascade, fallback battery included.
type WhatsAppParser struct {
	opts options
}

func NewWhatsAppParser(opts ...Option) *WhatsAppParser {
	return &WhatsAppParser{opts: buildOptions(opts)}
}

// Parse returns the contribution described by body, or false when no pattern
// fits. senderPhone, when given, is the member id of last resort.
func (p *WhatsAppParser) Parse(body, senderPhone string) (*ParsedContribution, bool) {
	text := Normalize(body)
	if text == "" {
		return nil, false
	}

	m, ok := matchCascade(text)
	if !ok {
		return nil, false
	}

	phone := strings.TrimSpace(senderPhone)
	return &ParsedContribution{
		SenderName:  m.SenderName,
		Amount:      m.Amount,
		MemberID:    MemberOrFallback(text, phone),
		Date:        p.opts.now(),
		Platform:    m.Platform,
		RawMessage:  strings.TrimSpace(body),
		PhoneNumber: phone,
	}, true
}
