package webhook

// eventPayload mirrors the gateway's messages.upsert webhook body. Only the
// fields the engine needs are bound; everything else is ignored.
type eventPayload struct {
	Event    string    `json:"event"`
	Instance string    `json:"instance"`
	Data     eventData `json:"data" validate:"required"`
}

type eventData struct {
	Key              messageKey      `json:"key" validate:"required"`
	PushName         string          `json:"pushName"`
	Message          *messageContent `json:"message"`
	MessageTimestamp int64           `json:"messageTimestamp"`
}

type messageKey struct {
	RemoteJid string `json:"remoteJid"`
	FromMe    bool   `json:"fromMe"`
	ID        string `json:"id"`
}

type messageContent struct {
	Conversation        string            `json:"conversation"`
	ExtendedTextMessage *extendedText     `json:"extendedTextMessage"`
	AudioMessage        *audioAttachment  `json:"audioMessage"`
	ImageMessage        *imageAttachment  `json:"imageMessage"`
}

type extendedText struct {
	Text string `json:"text"`
}

type audioAttachment struct {
	Mimetype string `json:"mimetype"`
	Seconds  int    `json:"seconds"`
}

type imageAttachment struct {
	Caption  string `json:"caption"`
	Mimetype string `json:"mimetype"`
}

// text returns the best text content of the message.
func (m *messageContent) text() string {
	if m == nil {
		return ""
	}
	if m.Conversation != "" {
		return m.Conversation
	}
	if m.ExtendedTextMessage != nil {
		return m.ExtendedTextMessage.Text
	}
	if m.ImageMessage != nil {
		return m.ImageMessage.Caption
	}
	return ""
}

func (m *messageContent) kind() string {
	switch {
	case m == nil:
		return "text"
	case m.AudioMessage != nil:
		return "audio"
	case m.ImageMessage != nil:
		return "image"
	default:
		return "text"
	}
}
