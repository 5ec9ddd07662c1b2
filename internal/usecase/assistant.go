package usecase

import (
	"context"
	"time"

	"persona-chat/internal/domain"
)

const (
	AssistantName   = "小助手"
	assistantNote   = "系统小助手，提供帮助和指导"
	assistantAvatar = "assistant-avatar.svg"
)

var assistantGuide = []string{
	"✨ **主要功能介绍**\n\n" +
		"📱 **多对话管理**\n左侧边栏可以创建和管理多个对话，每个对话都可以有不同的设置和历史记录。\n\n" +
		"💬 **智能回复**\n系统会根据你的设置，生成智能且个性化的回复。\n\n" +
		"🔄 **自定义设置**\n每个对话都可以单独设置场景、行为特点等参数。\n\n" +
		"📝 **消息管理**\n可以轻松删除单条或批量消息。",
	"📖 **基本使用指南**\n\n" +
		"➕ **创建对话**: 点击左上角\"+\"按钮\n" +
		"✏️ **发送消息**: 在底部输入框中输入内容，按Enter或点击发送按钮\n" +
		"🗑️ **删除消息**: 点击右上角\"⋮\"→\"选择消息\"→选中要删除的消息→\"删除所选\"\n" +
		"🖼️ **更换头像**: 在对话详情中点击\"更换头像\"\n" +
		"📱 **移动设备**: 点击侧边栏按钮可展开/收起对话列表",
	"⚙️ **自定义对话设置**\n\n" +
		"通过左侧的设置面板，你可以个性化每个对话：\n\n" +
		"🏞️ **场景设置**：例如\"咖啡厅\"、\"办公室\"或\"公园\"\n" +
		"🧠 **特定行为**：例如\"十分钟前在一起吃饭\"或\"刚刚一起在酒吧喝酒\"\n" +
		"👤 **对方信息**：例如\"年龄\"、\"职业\"或者\"性格\"\n" +
		"🔧 **自定义参数**：添加任何其他想要的设置\n\n" +
		"这些设置会根据你的想法和要求进行分析，影响系统生成回复的风格和内容，使对话更有针对性和个性化。注：描述越详细分析越准确。",
	"💡 **实用小技巧**\n\n" +
		"⌨️ 按Shift+Enter可以在输入框中换行\n" +
		"🔄 刷新页面不会丢失对话历史\n" +
		"📱 移动设备上可横屏获得更好体验\n" +
		"🔍 长按消息可以复制文本\n" +
		"⚡ 创建多个对话来区分不同主题",
	"希望你喜欢这个应用！如果有任何问题，可以随时在这个对话中向我询问。\n\n后续会继续添加实用功能\n\n祝你使用愉快！😊\n\n——你的智能助手",
}

// WelcomeMessages returns the six onboarding messages for displayName, one
// second apart starting at start.
func WelcomeMessages(displayName string, start time.Time) []domain.Message {
	texts := append([]string{
		"👋 你好，" + displayName + "！\n\n欢迎使用我们的聊天应用！我是你的专属助手，很高兴认识你。我将帮助你了解如何使用这个应用的各项功能。",
	}, assistantGuide...)

	out := make([]domain.Message, len(texts))
	for i, text := range texts {
		out[i] = domain.Message{
			ID:        newID(),
			Text:      text,
			Sender:    domain.SenderBot,
			Timestamp: domain.FormatTimestamp(start.Add(time.Duration(i) * time.Second)),
		}
	}
	return out
}

// EnsureAssistant makes the assistant conversation current, creating it with
// the welcome messages when no conversation carries AssistantName. It
// reports whether the conversation was created.
func (s *ConversationStore) EnsureAssistant(ctx context.Context, username string) (bool, error) {
	if username == "" {
		return false, newError(ErrorInvalidInput, "empty_username", nil)
	}

	s.mu.Lock()
	for i := range s.conversations {
		if s.conversations[i].Name == AssistantName {
			change := s.selectLocked(i)
			s.mu.Unlock()
			s.emit(change)
			return false, nil
		}
	}

	msgs := WelcomeMessages(username, now())
	conv := domain.Conversation{
		ID:          newID(),
		Name:        AssistantName,
		Avatar:      assistantAvatar,
		Note:        assistantNote,
		Messages:    msgs,
		CreatedAt:   domain.FormatTimestamp(now()),
		LastMessage: msgs[len(msgs)-1].Preview(),
	}
	s.conversations = append(s.conversations, conv)
	err := s.persistLocked(ctx, username)
	created := conv.Clone()
	changes := []Change{
		{Kind: ChangeCreated, ConversationID: conv.ID, Conversation: &created},
		s.selectLocked(len(s.conversations) - 1),
	}
	s.mu.Unlock()

	s.emit(changes...)
	return true, err
}
