package conversation

import (
	"fmt"
	"strings"

	"github.com/avvvet/bookbuddy/internal/locale"
	"github.com/avvvet/bookbuddy/internal/models"
)

// Replies are sent with Telegram's HTML parse mode, which rejects bare
// &, < and > outside tags and entities.
var htmlEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

func escapeHTML(s string) string {
	return htmlEscaper.Replace(s)
}

func waitNotice(loc models.Locale) string {
	return locale.T("One moment… ⏳", "请稍等… ⏳", loc)
}

func startMessage(businessName string, loc models.Locale) string {
	businessName = escapeHTML(businessName)
	return locale.T(
		fmt.Sprintf("Hi! I’m the %s assistant. Tell me what you’d like to book.\n"+
			"Commands:\n"+
			"• /book – get the booking link now\n"+
			"• /reset – clear our conversation\n"+
			"• /help – quick tips", businessName),
		fmt.Sprintf("你好！我是 %s 的预约助理。请告诉我你想预约的服务。\n"+
			"指令：\n"+
			"• /book – 直接获取预约链接\n"+
			"• /reset – 重置对话\n"+
			"• /help – 查看使用说明", businessName),
		loc)
}

func helpMessage(loc models.Locale) string {
	return locale.T(
		"You can type what you want to book, e.g. “haircut tomorrow 3pm”.\n"+
			"I’ll ask for missing info and then share the booking link.\n"+
			"Commands: /book /reset /start",
		"你可以直接输入要预约的服务，例如：“明天下午三点理发”。\n"+
			"我会询问缺少的信息，然后给你预约链接。\n"+
			"可用指令：/book /reset /start",
		loc)
}

func resetMessage(loc models.Locale) string {
	return locale.T(
		"Conversation reset ✅. What would you like to book?",
		"已重置对话 ✅。你想预约什么服务？",
		loc)
}

func bookingLinkMessage(bookingURL string, loc models.Locale) string {
	bookingURL = escapeHTML(bookingURL)
	return locale.T(
		"📅 <b>Book here:</b> "+bookingURL,
		"📅 <b>点击预约：</b> "+bookingURL,
		loc)
}

// summaryMessage renders the completed booking. Slot values come from the
// user and are escaped for Telegram's HTML parse mode.
func summaryMessage(slots models.Slots, displayTime, bookingURL string, loc models.Locale) string {
	name := escapeHTML(models.Deref(slots.Name))
	service := escapeHTML(models.Deref(slots.Service))
	when := escapeHTML(displayTime)

	return locale.T(
		"Great! Noted:\n"+
			"• Name: "+name+"\n"+
			"• Service: "+service+"\n"+
			"• Preferred time: "+when+"\n\n"+
			bookingLinkMessage(bookingURL, loc)+"\n"+
			"Once you book, I’ll confirm here.",
		"太好了！已记录：\n"+
			"• 姓名："+name+"\n"+
			"• 服务："+service+"\n"+
			"• 时间："+when+"\n\n"+
			bookingLinkMessage(bookingURL, loc)+"\n"+
			"预约完成后我会在这里确认。",
		loc)
}

// nextQuestion asks for the first missing slot
func nextQuestion(slots models.Slots, loc models.Locale) string {
	switch {
	case slots.Name == nil:
		return locale.T("What’s your name?", "请问你的名字是？", loc)
	case slots.Service == nil:
		return locale.T("What service would you like?", "你想预约什么服务？", loc)
	case slots.DatetimeText == nil:
		return locale.T("What date/time works for you?", "你希望的日期/时间是？", loc)
	default:
		return locale.T("Would you like the booking link now?", "需要我现在发预约链接给你吗？", loc)
	}
}

func clearerTimeHint(loc models.Locale) string {
	return locale.T(
		"\n\n(If possible, share a clearer time like 'tomorrow 3pm' or 'Aug 12, 10:00'.)",
		"\n\n（麻烦提供更明确的时间，如“明天下午3点”或“8月12日10:00”。）",
		loc)
}
