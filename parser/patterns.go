package parser

import (
	"regexp"
	"strings"
)

// Building blocks shared by the platform patterns. Every pattern captures the
// amount in group 1 and the sender name in group 2, except the fallback
// battery, whose order is resolved by orderCaptures.
const (
	amountExpr = `(\d[\d,]*(?:\.\d+)?)`

	// one or more words of letters, as few as possible
	nameExpr = `([\p{L}][\p{L}'\-]*(?:\s+[\p{L}][\p{L}'\-]*)*?)`

	// what may follow a sender name
	nameEnd = `(?:\s+(?:on|via|at|ref|reference|member|id|account|code|transaction|for|using|with|through|to|and|in)\b|\s*[.,;:!(]|\s+\d|$)`

	kesExpr      = `(?:KES|KSH)\.?\s?`
	currencyExpr = `(?:KES|KSH|USD|EUR|GBP|UGX|TZS|\$)\.?\s?`
	optCurrency  = `(?:` + currencyExpr + `)?`
	optDollar    = `(?:(?:\$|USD|EUR|GBP)\s?)?`
)

func compile(parts ...string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)` + strings.Join(parts, ""))
}

// patternSet is one platform's ordered patterns.
type patternSet struct {
	platform string
	patterns []*regexp.Regexp
	fallback bool
}

// peerPatterns builds the two layouts used by international peer-payment apps:
// "<app> ... received $X ... from NAME" and "$X from NAME via <app>".
func peerPatterns(keyword string) []*regexp.Regexp {
	return []*regexp.Regexp{
		compile(`\b`, keyword, `\b.*?\b(?:received|got)\s+`, optDollar, amountExpr, `.*?\bfrom\s+`, nameExpr, nameEnd),
		compile(optDollar, amountExpr, `\s+(?:received\s+)?from\s+`, nameExpr, `\s+(?:via|on|with|through)\s+`, keyword, `\b`),
	}
}

// platformCascade is tried in order; the first set that yields an accepted
// match decides the platform and later sets are never evaluated.
var platformCascade = []patternSet{
	{
		platform: PlatformMpesa,
		patterns: []*regexp.Regexp{
			// "QHX12ABC34 Confirmed. You have received Ksh1,500.00 from JOHN DOE 0712..."
			compile(`confirmed\.?\s+you\s+have\s+received\s+`, kesExpr, amountExpr, `\s+from\s+`, nameExpr, nameEnd),
			// "M-Pesa payment: KES 2,000 received from Grace Wanjiku."
			compile(`\bM-?PESA\b.*?`, kesExpr, amountExpr, `.*?\b(?:from|by)\s+`, nameExpr, nameEnd),
			// "KES 750 received from Paul Otieno via M-Pesa"
			compile(kesExpr, amountExpr, `\s+(?:received|confirmed)\s+from\s+`, nameExpr, `\s+(?:via|on|through)\s+M-?PESA\b`),
		},
	},
	{
		platform: PlatformAirtel,
		patterns: []*regexp.Regexp{
			compile(`\bAirtel\s*Money\b.*?`, currencyExpr, amountExpr, `.*?\b(?:from|by)\s+`, nameExpr, nameEnd),
			compile(currencyExpr, amountExpr, `\s+(?:received|confirmed)\s+from\s+`, nameExpr, `\s+(?:via|on|through)\s+Airtel\b`),
		},
	},
	{
		platform: PlatformBank,
		patterns: []*regexp.Regexp{
			compile(`\bbank\s+transfer\b.*?`, optCurrency, amountExpr, `.*?\b(?:from|by)\s+`, nameExpr, nameEnd),
			compile(`\b(?:account|a/c)\b.*?\bcredited\s+with\s+`, optCurrency, amountExpr, `.*?\bfrom\s+`, nameExpr, nameEnd),
		},
	},
	{
		platform: PlatformWhatsAppPay,
		patterns: []*regexp.Regexp{
			compile(`\bWhatsApp\s*Pay\b.*?`, optCurrency, amountExpr, `.*?\b(?:from|by)\s+`, nameExpr, nameEnd),
			// "Payment of KES 500 received from Mary Atieno"
			compile(`\bpayment\s+of\s+`, optCurrency, amountExpr, `\s+(?:received\s+)?from\s+`, nameExpr, nameEnd),
		},
	},
	{platform: PlatformZelle, patterns: peerPatterns(`Zelle`)},
	{platform: PlatformVenmo, patterns: peerPatterns(`Venmo`)},
	{platform: PlatformCashApp, patterns: peerPatterns(`Cash\s*App`)},
	{platform: PlatformPayPal, patterns: peerPatterns(`PayPal`)},
	{
		// Keyword-less KES receipts are M-Pesa. Kept behind the named
		// platforms so "Airtel Money: received KES ..." stays Airtel.
		platform: PlatformMpesa,
		patterns: []*regexp.Regexp{
			// "Received KES 1,000 from John Kamau ref AB1234"
			compile(`\b(?:received|confirmed|got)\s+`, kesExpr, amountExpr, `.*?\bfrom\s+`, nameExpr, nameEnd),
		},
	},
	{
		platform: PlatformMobilePayment,
		fallback: true,
		patterns: []*regexp.Regexp{
			// currency first
			compile(currencyExpr, amountExpr, `.*?\b(?:from|by|sent\s+by)\s+`, nameExpr, nameEnd),
			// amount first
			compile(amountExpr, `\s*(?:KES|KSH|USD|EUR|GBP|UGX|TZS|\$).*?\b(?:from|by|sent\s+by)\s+`, nameExpr, nameEnd),
			// name first: "John Kamau sent KES 300"
			compile(`\b`, nameExpr, `\s+(?:sent|paid|transferred)\s+(?:you\s+)?`, optCurrency, amountExpr),
			// "500 received from Mary"
			compile(optCurrency, amountExpr, `\s+(?:received|got)\s+from\s+`, nameExpr, nameEnd),
			compile(`\b(?:bank\s+transfer|transfer)\b.*?`, optCurrency, amountExpr, `.*?\b(?:from|by)\s+`, nameExpr, nameEnd),
			compile(`\b(?:payment|received|got|sent|transfer)\b.*?`, amountExpr, `.*?\b(?:from|to|by)\s+`, nameExpr, nameEnd),
		},
	},
}

// cascadeMatch is the tagged result of a cascade run.
type cascadeMatch struct {
	Platform   string
	Amount     float64
	SenderName string
	Fallback   bool
}

// matchCascade runs the platform cascade over normalized text.
func matchCascade(text string) (cascadeMatch, bool) {
	for _, set := range platformCascade {
		if m, ok := set.match(text); ok {
			return m, true
		}
	}
	return cascadeMatch{}, false
}

func (s patternSet) match(text string) (cascadeMatch, bool) {
	for _, re := range s.patterns {
		groups := re.FindStringSubmatch(text)
		if groups == nil {
			continue
		}

		amountRaw, nameRaw := groups[1], groups[2]
		if s.fallback {
			amountRaw, nameRaw = orderCaptures(groups[1], groups[2])
		}

		amount, err := ParseAmount(amountRaw)
		if err != nil || (s.fallback && amount <= 0) {
			continue
		}
		name := CleanSenderName(nameRaw)
		if name == "" {
			continue
		}

		return cascadeMatch{
			Platform:   s.platform,
			Amount:     amount,
			SenderName: name,
			Fallback:   s.fallback,
		}, true
	}
	return cascadeMatch{}, false
}

// orderCaptures decides which of the two fallback captures is the amount.
// Fallback patterns capture either "amount, name" or "name, amount"; the
// capture starting with a digit is taken as the amount.
func orderCaptures(first, second string) (amount, name string) {
	if startsWithDigit(first) {
		return first, second
	}
	return second, first
}

func startsWithDigit(s string) bool {
	s = strings.TrimSpace(s)
	return s != "" && s[0] >= '0' && s[0] <= '9'
}
