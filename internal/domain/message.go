package domain

import (
	"strings"
	"unicode/utf16"
)

// Message entity types that carry a user reference.
const (
	EntityMention     = "mention"
	EntityTextMention = "text_mention"
	EntityBotCommand  = "bot_command"
)

// Chat types reported by the platform.
const (
	ChatPrivate    = "private"
	ChatGroup      = "group"
	ChatSupergroup = "supergroup"
)

// PlatformUser is the sender of a message as reported by the chat platform.
type PlatformUser struct {
	ID        int64  `json:"id"`
	IsBot     bool   `json:"is_bot,omitempty"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name,omitempty"`
	Username  string `json:"username,omitempty"`
}

// DisplayName joins first and last name.
func (u PlatformUser) DisplayName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// Chat is the conversation a message was posted in.
type Chat struct {
	ID       int64  `json:"id"`
	Type     string `json:"type"`
	Title    string `json:"title,omitempty"`
	Username string `json:"username,omitempty"`
}

// IsGroup reports whether the chat is a group or supergroup.
func (c Chat) IsGroup() bool { return c.Type == ChatGroup || c.Type == ChatSupergroup }

// MessageEntity marks a span of message text. Offset and Length are counted
// in UTF-16 code units.
type MessageEntity struct {
	Type   string        `json:"type"`
	Offset int           `json:"offset"`
	Length int           `json:"length"`
	User   *PlatformUser `json:"user,omitempty"`
}

// Message is an inbound chat message.
type Message struct {
	MessageID      int64           `json:"message_id"`
	From           *PlatformUser   `json:"from,omitempty"`
	Chat           Chat            `json:"chat"`
	Text           string          `json:"text,omitempty"`
	Entities       []MessageEntity `json:"entities,omitempty"`
	ReplyToMessage *Message        `json:"reply_to_message,omitempty"`
	ForwardFrom    *PlatformUser   `json:"forward_from,omitempty"`
	NewChatMembers []PlatformUser  `json:"new_chat_members,omitempty"`
}

// EntityText returns the text covered by e, or "" when the span is out of range.
func (m *Message) EntityText(e MessageEntity) string {
	if m == nil || e.Offset < 0 || e.Length <= 0 {
		return ""
	}
	units := utf16.Encode([]rune(m.Text))
	end := e.Offset + e.Length
	if end > len(units) {
		return ""
	}
	return string(utf16.Decode(units[e.Offset:end]))
}

// FirstEntity returns the first entity of the given type.
func (m *Message) FirstEntity(typ string) (MessageEntity, bool) {
	if m == nil {
		return MessageEntity{}, false
	}
	for _, e := range m.Entities {
		if e.Type == typ {
			return e, true
		}
	}
	return MessageEntity{}, false
}

// InlineQuery is a query typed after the bot's @username in any chat.
type InlineQuery struct {
	ID    string       `json:"id"`
	From  PlatformUser `json:"from"`
	Query string       `json:"query"`
}

// Update is one inbound event delivered to the webhook.
type Update struct {
	UpdateID    int64        `json:"update_id"`
	Message     *Message     `json:"message,omitempty"`
	InlineQuery *InlineQuery `json:"inline_query,omitempty"`
}
