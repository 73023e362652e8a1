package messaging

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Button is one inline button. Exactly one of Data or URL is set.
type Button struct {
	Label string
	Data  string
	URL   string
}

// Keyboard builds an inline keyboard from rows of buttons.
func Keyboard(rows ...[]Button) *tgbotapi.InlineKeyboardMarkup {
	var out [][]tgbotapi.InlineKeyboardButton
	for _, row := range rows {
		var r []tgbotapi.InlineKeyboardButton
		for _, b := range row {
			if b.URL != "" {
				r = append(r, tgbotapi.NewInlineKeyboardButtonURL(b.Label, b.URL))
				continue
			}
			r = append(r, tgbotapi.NewInlineKeyboardButtonData(b.Label, b.Data))
		}
		out = append(out, r)
	}
	kb := tgbotapi.NewInlineKeyboardMarkup(out...)
	return &kb
}
