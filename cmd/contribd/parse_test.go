package main

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phillip/contribution-pipeline-go/parser"
)

func runCLI(args ...string) (string, error) {
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestParseCommandSMS(t *testing.T) {
	out, err := runCLI("parse", "XYZ1A2 Confirmed. You have received Ksh1,500.00 from JOHN DOE 07001 on 12/5/24")
	require.NoError(t, err)

	var got parser.ParsedContribution
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "John Doe", got.SenderName)
	assert.Equal(t, 1500.0, got.Amount)
	assert.Equal(t, parser.PlatformMpesa, got.Platform)
}

func TestParseCommandWhatsAppFallsBackToPhone(t *testing.T) {
	out, err := runCLI("parse", "--channel", "whatsapp", "--phone", "254712345678",
		"Payment of KES 500 received from Mary Atieno")
	require.NoError(t, err)

	var got parser.ParsedContribution
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "254712345678", got.PhoneNumber)
	assert.Equal(t, "254712345678", got.MemberID)
	assert.Equal(t, "Mary Atieno", got.SenderName)
}

func TestParseCommandErrors(t *testing.T) {
	_, err := runCLI("parse", "hello there")
	assert.ErrorIs(t, err, errNoMatch)

	_, err = runCLI("parse", "--channel", "fax", "anything")
	assert.ErrorContains(t, err, "unknown channel")

	_, err = runCLI("parse")
	assert.Error(t, err)
}
