package parser

// WhatsAppEnvelope is the WhatsApp Business webhook body, reduced to the
// fields the pipeline reads.
type WhatsAppEnvelope struct {
	Object string          `json:"object"`
	Entry  []WhatsAppEntry `json:"entry"`
}

type WhatsAppEntry struct {
	ID      string           `json:"id"`
	Changes []WhatsAppChange `json:"changes"`
}

type WhatsAppChange struct {
	Field string        `json:"field"`
	Value WhatsAppValue `json:"value"`
}

type WhatsAppValue struct {
	MessagingProduct string            `json:"messaging_product"`
	Messages         []WhatsAppMessage `json:"messages"`
}

type WhatsAppMessage struct {
	From      string `json:"from"`
	ID        string `json:"id"`
	Timestamp string `json:"timestamp"`
	Type      string `json:"type"`
	Text      *struct {
		Body string `json:"body"`
	} `json:"text,omitempty"`
}

// InboundMessage is the text message carried by a WhatsApp webhook.
type InboundMessage struct {
	Body        string
	SenderPhone string
}

const whatsAppBusinessObject = "whatsapp_business_account"

// ExtractWhatsAppMessage returns the first text message of the first change of
// the first entry. Any other shape yields false.
func ExtractWhatsAppMessage(env WhatsAppEnvelope) (InboundMessage, bool) {
	if env.Object != whatsAppBusinessObject || len(env.Entry) == 0 {
		return InboundMessage{}, false
	}
	changes := env.Entry[0].Changes
	if len(changes) == 0 || len(changes[0].Value.Messages) == 0 {
		return InboundMessage{}, false
	}

	msg := changes[0].Value.Messages[0]
	if msg.Type != "text" || msg.Text == nil {
		return InboundMessage{}, false
	}
	return InboundMessage{Body: msg.Text.Body, SenderPhone: msg.From}, true
}
