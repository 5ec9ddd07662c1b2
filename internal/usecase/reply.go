package usecase

import (
	"strings"

	"persona-chat/internal/domain"
)

const (
	replyHeader       = "根据设置生成的回复:\n"
	labelScene        = "场景："
	labelBehavior     = "行为："
	labelPartnerInfo  = "对方信息："
	labelCustom       = "自定义设置："
	settingsReplyTail = "的回复是：这是一个模拟回复，在实际应用中，这里会根据设置和用户输入生成更智能的回复。"
	plainReplyTail    = "。这是一个模拟回复，在实际应用中，这里会连接到后端API获取真实回复。"
)

// SynthesizeReply builds the stand-in bot reply for userText. The output is a
// pure function of its inputs.
func SynthesizeReply(settings domain.Settings, userText string) string {
	if settings.IsEmpty() {
		return "你说：\"" + userText + "\"" + plainReplyTail
	}

	var sb strings.Builder
	sb.WriteString(replyHeader)
	for _, line := range []struct {
		label string
		value string
	}{
		{labelScene, settings.Scene},
		{labelBehavior, settings.Behavior},
		{labelPartnerInfo, settings.PartnerInfo},
		{labelCustom, settings.CustomSetting},
	} {
		if line.value == "" {
			continue
		}
		sb.WriteString(line.label)
		sb.WriteString(line.value)
		sb.WriteString("\n")
	}
	sb.WriteString("\n针对\"")
	sb.WriteString(userText)
	sb.WriteString("\"")
	sb.WriteString(settingsReplyTail)
	return sb.String()
}
