package parser

import (
	"regexp"
	"strings"
)

type memberPattern struct {
	re    *regexp.Regexp
	group int
	// labelled captures may be letters only; shape patterns need a digit
	labelled bool
}

// Member id patterns in priority order. The first candidate, scanning pattern
// by pattern and left to right within a pattern, wins.
var memberPatterns = []memberPattern{
	// Labelled references: "Member: 4821", "Ref: AB123", "Account No. 55012", "Memo 2201"
	{regexp.MustCompile(`(?i)\b(?:member(?:\s+(?:id|no|number))?|ref(?:erence)?|id|account(?:\s+(?:no|number))?|acc|code|transaction(?:\s+(?:id|code))?|memo|note)\b\.?[\s:#=-]*([A-Z0-9]{3,})`), 1, true},

	// Code shapes seen on receipts: TF-prefixed member codes, M-Pesa style
	// prefixes, short letter+digit codes
	{regexp.MustCompile(`(?i)\bTF[A-Z0-9]{3,}\b`), 0, false},
	{regexp.MustCompile(`(?i)\b[A-Z]{2,3}\d{6,}\b`), 0, false},
	{regexp.MustCompile(`(?i)\b[A-Z]{2}\d{3,}\b`), 0, false},
	{regexp.MustCompile(`(?i)\b[A-Z]{3}\d{2,}\b`), 0, false},

	// Phone numbers as member id
	{regexp.MustCompile(`\+?254\d{9}\b`), 0, false},
	{regexp.MustCompile(`\b0[17]\d{8}\b`), 0, false},
}

// currency codes glued to an amount ("KES500") look like member codes
var currencyPrefixes = []string{"KES", "KSH", "USD", "EUR", "GBP", "UGX", "TZS"}

// words that follow a label in running prose ("account with", "memo for")
var labelFillers = map[string]bool{
	"AND": true, "ARE": true, "BALANCE": true, "COMPLETED": true, "CONFIRMED": true,
	"FOR": true, "FROM": true, "HAS": true, "NOT": true, "NUMBER": true,
	"PAID": true, "PAYMENT": true, "RECEIVED": true, "SENT": true, "SUCCESSFUL": true,
	"THANK": true, "THANKS": true, "THAT": true, "THE": true, "THEN": true,
	"THIS": true, "VIA": true, "WAS": true, "WITH": true, "YOU": true, "YOUR": true,
}

// ExtractMemberID searches normalized text for a member identifier.
func ExtractMemberID(text string) (string, bool) {
	for _, p := range memberPatterns {
		for _, m := range p.re.FindAllStringSubmatch(text, -1) {
			if candidate := m[p.group]; isMemberCandidate(candidate, p.labelled) {
				return candidate, true
			}
		}
	}
	return "", false
}

// MemberOrFallback returns the member id found in text, else the channel
// supplied phone, else UnknownMember. The result is an opaque label.
func MemberOrFallback(text, phone string) string {
	if id, ok := ExtractMemberID(text); ok {
		return id
	}
	if phone = strings.TrimSpace(phone); phone != "" {
		return phone
	}
	return UnknownMember
}

func isMemberCandidate(s string, labelled bool) bool {
	upper := strings.ToUpper(s)
	if !strings.ContainsAny(s, "0123456789") {
		return labelled && !labelFillers[upper]
	}
	for _, cur := range currencyPrefixes {
		if strings.HasPrefix(upper, cur) {
			return false
		}
	}
	return true
}
