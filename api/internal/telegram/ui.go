package telegram

import (
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"retouch-bot/api/internal/panel"
	"retouch-bot/api/internal/util"
)

const (
	cbDetect   = "detect"
	cbObject   = "obj"
	cbPeek     = "peek"
	cbGenerate = "gen"
)

// parseCallback: "detect" | "gen" | "obj:<i>" | "peek:<i>".
func parseCallback(data string) (action string, idx int, ok bool) {
	switch data {
	case cbDetect, cbGenerate:
		return data, -1, true
	}
	name, num, found := strings.Cut(data, ":")
	if !found || (name != cbObject && name != cbPeek) {
		return "", 0, false
	}
	n, err := strconv.Atoi(num)
	if err != nil || n < 0 {
		return "", 0, false
	}
	return name, n, true
}

func panelKeyboard(v panel.View) tgbotapi.InlineKeyboardMarkup {
	rows := [][]tgbotapi.InlineKeyboardButton{}
	if v.DetectEnabled {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🔍 Detect Objects", cbDetect),
		))
	}
	for _, c := range v.Chips {
		label := c.Name
		switch {
		case c.Disabled:
			label = "⏳ " + label
		case c.Selected:
			label = "✅ " + label
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, cbObject+":"+strconv.Itoa(c.Index)),
			tgbotapi.NewInlineKeyboardButtonData("👁", cbPeek+":"+strconv.Itoa(c.Index)),
		))
	}
	if v.SubmitEnabled {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✨ Generate", cbGenerate),
		))
	}
	return tgbotapi.InlineKeyboardMarkup{InlineKeyboard: rows}
}

func panelText(v panel.View, generating bool) string {
	var b strings.Builder
	b.WriteString(v.Headline)
	if v.Message != "" {
		b.WriteString("\n")
		b.WriteString(v.Message)
	}
	if v.ShowPrompt {
		b.WriteString("\n\n✏️ Edit: ")
		if strings.TrimSpace(v.Prompt) != "" {
			b.WriteString(v.Prompt)
		} else {
			b.WriteString("send a message, " + v.Placeholder)
		}
	}
	if generating {
		b.WriteString("\n\n⏳ Generating your edit...")
	}
	return b.String()
}

// renderPanel обновляет сообщение панели (или шлёт новое). Вызывается под s.mu.
func (r *Router) renderPanel(s *session) {
	if !s.hasImage() {
		return
	}
	v := s.panel.View()
	text := panelText(v, s.panel.Generating())
	kb := panelKeyboard(v)

	if s.panelMsgID != 0 {
		ed := tgbotapi.NewEditMessageTextAndMarkup(s.chatID, s.panelMsgID, text, kb)
		_, err := r.Bot.Send(ed)
		if err == nil || strings.Contains(err.Error(), "message is not modified") {
			return
		}
		util.Logger.Debug("panel edit failed, sending new", zap.Error(err))
	}

	msg := tgbotapi.NewMessage(s.chatID, text)
	if len(kb.InlineKeyboard) > 0 {
		msg.ReplyMarkup = kb
	}
	sent, err := r.Bot.Send(msg)
	if err != nil {
		util.Logger.Warn("panel send failed", zap.Int64("chat_id", s.chatID), zap.Error(err))
		return
	}
	s.panelMsgID = sent.MessageID
}
