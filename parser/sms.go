package parser

import (
	"regexp"
	"strconv"
	"time"
)

// smsFormat is one platform's full-message SMS layout. Each pattern names the
// amount, name, member and date groups.
type smsFormat struct {
	platform string
	re       *regexp.Regexp
}

const smsAmount = `(?P<amount>\d[\d,]*(?:\.\d+)?)`

var smsFormats = []smsFormat{
	{PlatformZelle, regexp.MustCompile(`(?i)You received \$?` + smsAmount + ` from (?P<name>.+?) on (?P<date>\d{2}/\d{2}/\d{4})\. Memo: (?P<member>\d+)`)},
	{PlatformVenmo, regexp.MustCompile(`(?i)(?P<name>.+?) paid you \$?` + smsAmount + ` (?:–|-) ["“](?P<member>\d+)["”] on (?P<date>\d{2}/\d{2}/\d{4})`)},
	{PlatformCashApp, regexp.MustCompile(`(?i)You received \$?` + smsAmount + ` from (?P<name>.+?) on (?P<date>\d{2}/\d{2}/\d{4})\. Note: (?P<member>\d+)`)},
	{PlatformMpesa, regexp.MustCompile(`(?i)(?P<txn>[A-Z0-9]+) Confirmed\. You have received Ksh ?` + smsAmount + ` from (?P<name>.+?) (?P<member>\d+) on (?P<date>\d{1,2}/\d{1,2}/\d{2,4})`)},
	{PlatformAirtel, regexp.MustCompile(`(?i)You have received Ksh ?` + smsAmount + ` from (?P<name>.+?) \((?P<member>\d+)\) on (?P<date>\d{1,2}/\d{1,2}/\d{2,4})`)},
}

// Date layouts embedded in SMS notifications, month first.
var smsDateLayouts = []*regexp.Regexp{
	regexp.MustCompile(`^(\d{2})/(\d{2})/(\d{4})$`),       // MM/DD/YYYY
	regexp.MustCompile(`^(\d{1,2})/(\d{1,2})/(\d{2,4})$`), // M/D/YY or M/D/YYYY
}

// SMSParser parses single-message payment notifications.
type SMSParser struct {
	opts options
}

func NewSMSParser(opts ...Option) *SMSParser {
	return &SMSParser{opts: buildOptions(opts)}
}

// Parse returns the contribution described by message, or false when no
// platform layout matches.
func (p *SMSParser) Parse(message string) (*ParsedContribution, bool) {
	text := Normalize(message)
	if text == "" {
		return nil, false
	}

	for _, f := range smsFormats {
		m := f.re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		group := func(name string) string { return m[f.re.SubexpIndex(name)] }

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
			Date:       parseSMSDate(group("date"), p.opts.now),
			Platform:   f.platform,
			RawMessage: message,
		}, true
	}
	return nil, false
}

// parseSMSDate reads a month-first date. Two digit years are taken as 20YY.
// When no layout yields a valid calendar date the current time is used.
func parseSMSDate(raw string, now func() time.Time) time.Time {
	for _, layout := range smsDateLayouts {
		m := layout.FindStringSubmatch(raw)
		if m == nil {
			continue
		}
		month, _ := strconv.Atoi(m[1])
		day, _ := strconv.Atoi(m[2])
		year, _ := strconv.Atoi(m[3])
		if year < 100 {
			year += 2000
		}
		if t, ok := calendarDate(year, month, day); ok {
			return t
		}
	}
	return now()
}

func calendarDate(year, month, day int) (time.Time, bool) {
	if year < 1000 || month < 1 || month > 12 || day < 1 {
		return time.Time{}, false
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Month() != time.Month(month) {
		// day overflowed into the next month
		return time.Time{}, false
	}
	return t, true
}
