package parser

import (
	"fmt"
	"regexp"
	"time"
)

// emailFormat pairs the subject and body layouts of one peer-payment
// platform. Both must match.
type emailFormat struct {
	platform string
	subject  *regexp.Regexp
	body     *regexp.Regexp
}

const emailAmount = `(?P<amount>\d[\d,]*(?:\.\d+)?)`

var emailFormats = []emailFormat{
	{
		platform: PlatformZelle,
		subject:  regexp.MustCompile(`(?i)You(?:'|’)ve received money from (.+)`),
		body:     regexp.MustCompile(`(?is)(?P<name>.+?) has sent you \$?` + emailAmount + ` with Zelle.*?Memo: (?P<member>\d+)`),
	},
	{
		platform: PlatformVenmo,
		subject:  regexp.MustCompile(`(?i)(.+?) sent you \$?\d[\d,]*(?:\.\d+)?`),
		body:     regexp.MustCompile(`(?is)(?P<name>.+?) just sent you \$?` + emailAmount + ` on Venmo.*?Note: (?P<member>\d+)`),
	},
	{
		platform: PlatformCashApp,
		subject:  regexp.MustCompile(`(?i)Payment Received - \$?\d[\d,]*(?:\.\d+)? from (.+)`),
		body:     regexp.MustCompile(`(?is)You(?:'|’)ve received \$?` + emailAmount + ` from (?P<name>.+?) on\b.*?Note: (?P<member>\d+)`),
	},
}

// EmailParser parses peer-payment notification emails.
type EmailParser struct {
	opts options
}

func NewEmailParser(opts ...Option) *EmailParser {
	return &EmailParser{opts: buildOptions(opts)}
}

// Parse returns the contribution described by the email, or false when no
// platform matches both subject and body. A zero receivedDate is replaced by
// the parse time.
func (p *EmailParser) Parse(subject, body string, receivedDate time.Time) (*ParsedContribution, bool) {
	normSubject := Normalize(subject)
	normBody := Normalize(body)
	if normSubject == "" || normBody == "" {
		return nil, false
	}

	date := receivedDate
	if date.IsZero() {
		date = p.opts.now()
	}

	for _, f := range emailFormats {
		if !f.subject.MatchString(normSubject) {
			continue
		}
		m := f.body.FindStringSubmatch(normBody)
		if m == nil {
			continue
		}
		group := func(name string) string { return m[f.body.SubexpIndex(name)] }

		amount, err := ParseAmount(group("amount"))
		if err != nil {
			continue
		}
		name := CleanSenderName(group("name"))
		if name == "" {
			continue
		}

		return &ParsedContribution{
			SenderName: name,
			Amount:     amount,
			MemberID:   group("member"),
			Date:       date,
			Platform:   f.platform,
			RawMessage: fmt.Sprintf("Subject: %s\n\nBody: %s", subject, body),
		}, true
	}
	return nil, false
}
