package bot

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	callbackMenu         = "menu"
	callbackMenuList     = "menu_list"
	callbackMenuTags     = "menu_tags"
	callbackMenuTop      = "menu_top"
	callbackMenuUsage    = "menu_usage"
	callbackReadPrefix   = "read_"
	callbackUnreadPrefix = "unread_"
	callbackRemovePrefix = "remove_"
	callbackTagPrefix    = "tag_"

	tagsKeyboardRowSize   = 3
	maxCallbackDataLength = 64
)

func getReturnKeyboard() [][]tgbotapi.InlineKeyboardButton {
	return [][]tgbotapi.InlineKeyboardButton{
		{tgbotapi.NewInlineKeyboardButtonData("⬅️ Return to menu", callbackMenu)},
	}
}

func getMenuKeyboard() [][]tgbotapi.InlineKeyboardButton {
	return [][]tgbotapi.InlineKeyboardButton{
		{
			tgbotapi.NewInlineKeyboardButtonData("📚 My articles", callbackMenuList),
			tgbotapi.NewInlineKeyboardButtonData("🏷 Tags", callbackMenuTags),
		},
		{
			tgbotapi.NewInlineKeyboardButtonData("🔥 Discover", callbackMenuTop),
			tgbotapi.NewInlineKeyboardButtonData("📊 Usage", callbackMenuUsage),
		},
	}
}

func getArticleKeyboard(articleID string, hasRead bool) [][]tgbotapi.InlineKeyboardButton {
	read := tgbotapi.NewInlineKeyboardButtonData("✅ Mark read", callbackReadPrefix+articleID)
	if hasRead {
		read = tgbotapi.NewInlineKeyboardButtonData("↩️ Mark unread", callbackUnreadPrefix+articleID)
	}

	return [][]tgbotapi.InlineKeyboardButton{
		{
			read,
			tgbotapi.NewInlineKeyboardButtonData("🗑 Remove", callbackRemovePrefix+articleID),
		},
	}
}

// getTagsKeyboard offers one filter button per tag. Telegram caps callback
// data at 64 bytes, so longer tags are left out.
func getTagsKeyboard(tags []string) [][]tgbotapi.InlineKeyboardButton {
	var keyboard [][]tgbotapi.InlineKeyboardButton
	var row []tgbotapi.InlineKeyboardButton

	for _, tag := range tags {
		data := callbackTagPrefix + tag
		if len(data) > maxCallbackDataLength {
			continue
		}

		row = append(row, tgbotapi.NewInlineKeyboardButtonData("#"+tag, data))
		if len(row) == tagsKeyboardRowSize {
			keyboard = append(keyboard, row)
			row = nil
		}
	}

	if len(row) > 0 {
		keyboard = append(keyboard, row)
	}

	return append(keyboard, getReturnKeyboard()...)
}
