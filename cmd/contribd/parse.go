package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/phillip/contribution-pipeline-go/parser"
)

var errNoMatch = errors.New("no payment pattern matched")

func parseCmd() *cobra.Command {
	var (
		channel string
		subject string
		phone   string
	)

	cmd := &cobra.Command{
		Use:   "parse [text]",
		Short: "Parse one payment notification and print the extracted contribution",
		Long: `Parse one payment notification offline.

Examples:
  contribd parse "XYZ1A2 Confirmed. You have received Ksh1,500.00 from JOHN DOE 07001 on 12/5/24"
  contribd parse --channel email --subject "You received money with Zelle" "..."
  contribd parse --channel whatsapp --phone 254712345678 "Payment of KES 500 received from Mary Atieno"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed, ok, err := parseText(channel, subject, phone, args[0])
			if err != nil {
				return err
			}
			if !ok {
				return errNoMatch
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(parsed)
		},
	}

	cmd.Flags().StringVarP(&channel, "channel", "c", "sms", "Channel (sms, email, whatsapp)")
	cmd.Flags().StringVarP(&subject, "subject", "s", "", "Email subject (email channel)")
	cmd.Flags().StringVarP(&phone, "phone", "p", "", "Sender phone number (whatsapp channel)")

	return cmd
}

func parseText(channel, subject, phone, text string) (*parser.ParsedContribution, bool, error) {
	switch strings.ToLower(channel) {
	case "sms":
		p, ok := parser.NewSMSParser().Parse(text)
		return p, ok, nil
	case "email":
		p, ok := parser.NewEmailParser().Parse(subject, text, time.Time{})
		return p, ok, nil
	case "whatsapp":
		p, ok := parser.NewWhatsAppParser().Parse(text, phone)
		return p, ok, nil
	default:
		return nil, false, fmt.Errorf("unknown channel %q", channel)
	}
}
