package handlers

import (
	"github.com/tbourn/go-chat-bot/internal/bot"
	"github.com/tbourn/go-chat-bot/internal/services"
	"github.com/tbourn/go-chat-bot/internal/sysutil"
	"github.com/tbourn/go-chat-bot/internal/utils"
)

// Bot API methods answered inline in the webhook response body.
const (
	MethodSendMessage       = "sendMessage"
	MethodSendPhoto         = "sendPhoto"
	MethodAnswerInlineQuery = "answerInlineQuery"
)

const (
	// maxCaptionRunes is the platform limit for photo captions.
	maxCaptionRunes = 1024
	maxTitleRunes   = 64
	// blankText stands in for the body of a menu-only reply; the platform
	// rejects empty message text.
	blankText = "\u2063"
)

// InlineButton is one button of an inline keyboard.
type InlineButton struct {
	Text string `json:"text"`
	URL  string `json:"url"`
}

// ReplyMarkup is an inline keyboard, one button per row.
type ReplyMarkup struct {
	InlineKeyboard [][]InlineButton `json:"inline_keyboard"`
}

// SendMessage is the sendMessage call.
type SendMessage struct {
	Method           string       `json:"method"`
	ChatID           int64        `json:"chat_id"`
	Text             string       `json:"text"`
	ReplyToMessageID int64        `json:"reply_to_message_id,omitempty"`
	ReplyMarkup      *ReplyMarkup `json:"reply_markup,omitempty"`
}

// SendPhoto is the sendPhoto call.
type SendPhoto struct {
	Method           string       `json:"method"`
	ChatID           int64        `json:"chat_id"`
	Photo            string       `json:"photo"`
	Caption          string       `json:"caption,omitempty"`
	ReplyToMessageID int64        `json:"reply_to_message_id,omitempty"`
	ReplyMarkup      *ReplyMarkup `json:"reply_markup,omitempty"`
}

// InputMessageContent is the text posted when an article result is chosen.
type InputMessageContent struct {
	MessageText string `json:"message_text"`
}

// InlineResult is an article or photo result of an inline query.
type InlineResult struct {
	Type                string               `json:"type"`
	ID                  string               `json:"id"`
	Title               string               `json:"title,omitempty"`
	Description         string               `json:"description,omitempty"`
	InputMessageContent *InputMessageContent `json:"input_message_content,omitempty"`
	PhotoURL            string               `json:"photo_url,omitempty"`
	ThumbnailURL        string               `json:"thumbnail_url,omitempty"`
	Caption             string               `json:"caption,omitempty"`
	ReplyMarkup         *ReplyMarkup         `json:"reply_markup,omitempty"`
}

// AnswerInlineQuery is the answerInlineQuery call.
type AnswerInlineQuery struct {
	Method        string         `json:"method"`
	InlineQueryID string         `json:"inline_query_id"`
	Results       []InlineResult `json:"results"`
	CacheTime     int            `json:"cache_time"`
	IsPersonal    bool           `json:"is_personal"`
}

// render converts a reply into the Bot API call to send back, or nil when
// there is nothing to send.
func render(r services.Reply) any {
	resp := r.Response
	if r.Kind == services.ReplyNone || resp.Empty() {
		return nil
	}
	markup := keyboard(resp.Menu)

	if r.Kind == services.ReplyInline {
		res := InlineResult{ID: "1", ReplyMarkup: markup}
		if img := resp.Image; img != nil {
			res.Type = "photo"
			res.PhotoURL = img.URL
			res.ThumbnailURL = img.URL
			res.Title = img.Title
			res.Description = img.Description
			res.Caption = utils.Clip(sysutil.FirstNonEmpty(img.Caption, resp.Text), maxCaptionRunes)
		} else {
			text := utils.Clip(resp.Text, utils.MaxMessageRunes)
			if text == "" {
				text = blankText
			}
			res.Type = "article"
			res.Title = utils.Clip(firstLine(text), maxTitleRunes)
			res.InputMessageContent = &InputMessageContent{MessageText: text}
		}
		return AnswerInlineQuery{
			Method:        MethodAnswerInlineQuery,
			InlineQueryID: r.InlineQueryID,
			Results:       []InlineResult{res},
			IsPersonal:    true,
		}
	}

	if img := resp.Image; img != nil {
		return SendPhoto{
			Method:           MethodSendPhoto,
			ChatID:           r.ChatID,
			Photo:            img.URL,
			Caption:          utils.Clip(sysutil.FirstNonEmpty(img.Caption, resp.Text), maxCaptionRunes),
			ReplyToMessageID: r.ReplyToMessageID,
			ReplyMarkup:      markup,
		}
	}
	text := utils.Clip(resp.Text, utils.MaxMessageRunes)
	if text == "" {
		text = blankText
	}
	return SendMessage{
		Method:           MethodSendMessage,
		ChatID:           r.ChatID,
		Text:             text,
		ReplyToMessageID: r.ReplyToMessageID,
		ReplyMarkup:      markup,
	}
}

func keyboard(m *bot.Menu) *ReplyMarkup {
	if m == nil || len(m.Buttons) == 0 {
		return nil
	}
	rows := make([][]InlineButton, 0, len(m.Buttons))
	for _, b := range m.Buttons {
		rows = append(rows, []InlineButton{{Text: b.Text, URL: b.URL}})
	}
	return &ReplyMarkup{InlineKeyboard: rows}
}

func firstLine(s string) string {
	for i, r := range s {
		if r == '\n' {
			return s[:i]
		}
	}
	return s
}
