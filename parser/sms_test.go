package parser

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSMSParserPlatforms(t *testing.T) {
	p := NewSMSParser(WithClock(fixedClock))

	tests := []struct {
		name     string
		message  string
		platform string
		amount   float64
		sender   string
		member   string
		date     time.Time
	}{
		{
			name:     "mpesa",
			message:  "XYZ1A2 Confirmed. You have received Ksh1,500.00 from JOHN DOE 07001 on 12/5/24",
			platform: PlatformMpesa, amount: 1500, sender: "John Doe", member: "07001",
			date: time.Date(2024, time.December, 5, 0, 0, 0, 0, time.UTC),
		},
		{
			name:     "airtel",
			message:  "You have received Ksh 2,000 from PETER OTIENO (12345) on 3/4/2024",
			platform: PlatformAirtel, amount: 2000, sender: "Peter Otieno", member: "12345",
			date: time.Date(2024, time.March, 4, 0, 0, 0, 0, time.UTC),
		},
		{
			name:     "zelle",
			message:  "You received $120.50 from Alice Brown on 03/15/2024. Memo: 1001",
			platform: PlatformZelle, amount: 120.50, sender: "Alice Brown", member: "1001",
			date: time.Date(2024, time.March, 15, 0, 0, 0, 0, time.UTC),
		},
		{
			name:     "venmo",
			message:  `Bob Marley paid you $25.00 – "4410" on 04/01/2024`,
			platform: PlatformVenmo, amount: 25, sender: "Bob Marley", member: "4410",
			date: time.Date(2024, time.April, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name:     "cash app",
			message:  "You received $1,020 from Carol King on 11/30/2023. Note: 777",
			platform: PlatformCashApp, amount: 1020, sender: "Carol King", member: "777",
			date: time.Date(2023, time.November, 30, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := p.Parse(tt.message)
			require.True(t, ok)
			assert.Equal(t, tt.platform, got.Platform)
			assert.InDelta(t, tt.amount, got.Amount, 0.001)
			assert.Equal(t, tt.sender, got.SenderName)
			assert.Equal(t, tt.member, got.MemberID)
			assert.True(t, tt.date.Equal(got.Date), "date %v", got.Date)
			assert.Equal(t, tt.message, got.RawMessage)
		})
	}
}

func TestSMSParserNoMatch(t *testing.T) {
	p := NewSMSParser(WithClock(fixedClock))
	for _, msg := range []string{
		"",
		"Your OTP is 123456",
		"Payment of KES 500 received from Mary Atieno",
	} {
		got, ok := p.Parse(msg)
		assert.False(t, ok, msg)
		assert.Nil(t, got)
	}
}

func TestSMSParserIdempotent(t *testing.T) {
	p := NewSMSParser(WithClock(fixedClock))
	msg := "XYZ1A2 Confirmed. You have received Ksh1,500.00 from JOHN DOE 07001 on 12/5/24"
	first, ok := p.Parse(msg)
	require.True(t, ok)
	second, ok := p.Parse(msg)
	require.True(t, ok)
	assert.Equal(t, first, second)
}

func TestParseSMSDate(t *testing.T) {
	tests := []struct {
		raw  string
		want time.Time
	}{
		{"03/15/2024", time.Date(2024, time.March, 15, 0, 0, 0, 0, time.UTC)},
		{"1/2/24", time.Date(2024, time.January, 2, 0, 0, 0, 0, time.UTC)},
		{"12/31/2023", time.Date(2023, time.December, 31, 0, 0, 0, 0, time.UTC)},
		{"13/01/2024", fixedNow},
		{"02/30/2024", fixedNow},
		{"garbage", fixedNow},
	}
	for _, tt := range tests {
		got := parseSMSDate(tt.raw, fixedClock)
		assert.True(t, tt.want.Equal(got), "%s: got %v", tt.raw, got)
	}
}
