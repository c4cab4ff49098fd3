// Package model 包含了应用的数据模型定义。
package model

// Role 标识一条对话消息的发送方。
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ChatMessage 代表会话历史中的单条消息，创建后不再修改。
type ChatMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// UserMessage 构造一条用户消息。
func UserMessage(content string) ChatMessage {
	return ChatMessage{Role: RoleUser, Content: content}
}

// AssistantMessage 构造一条助手消息。
func AssistantMessage(content string) ChatMessage {
	return ChatMessage{Role: RoleAssistant, Content: content}
}

// InboundMessage 是一条入站短信 webhook 事件。
type InboundMessage struct {
	MessageSID string
	From       string
	To         string
	Body       string
}
