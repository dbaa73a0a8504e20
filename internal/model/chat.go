// Package model 包含了应用的数据模型定义。
package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Chat 定义了 chat 表的 ORM 模型。
// 整个消息序列作为单个 JSON 字段存储，整行覆盖写入（last-writer-wins）。
type Chat struct {
	ID        string      `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID    uint        `gorm:"index;not null" json:"userId"`
	Messages  MessageList `gorm:"type:json;not null" json:"messages"`
	CreatedAt time.Time   `gorm:"autoCreateTime" json:"createdAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (Chat) TableName() string {
	return "chat"
}

// MessageList 是消息序列的 JSON 列类型。
type MessageList []ChatMessage

// Value 实现 driver.Valuer，将消息序列序列化为 JSON 存入数据库。
func (l MessageList) Value() (driver.Value, error) {
	if l == nil {
		l = MessageList{}
	}
	return json.Marshal(l)
}

// Scan 实现 sql.Scanner，从数据库的 JSON 列还原消息序列。
func (l *MessageList) Scan(value interface{}) error {
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, l)
	case string:
		return json.Unmarshal([]byte(v), l)
	case nil:
		*l = MessageList{}
		return nil
	default:
		return fmt.Errorf("unsupported messages column type %T", value)
	}
}

// ChatMessage 代表一条对话消息。
type ChatMessage struct {
	ID          string        `json:"id"`
	Role        string        `json:"role"` // "user" 或 "assistant"
	Parts       []MessagePart `json:"parts"`
	Attachments []Attachment  `json:"attachments,omitempty"`
	Timestamp   time.Time     `json:"timestamp"`
}

// Text 返回消息中所有文本片段拼接后的内容。
func (m ChatMessage) Text() string {
	var b strings.Builder
	for _, p := range m.Parts {
		if p.Type == PartTypeText {
			b.WriteString(p.Text)
		}
	}
	return b.String()
}

// Attachment 描述消息附带的文件引用，文件本体由外部存储负责。
type Attachment struct {
	Name        string `json:"name"`
	ContentType string `json:"contentType"`
	URL         string `json:"url"`
}

// 消息片段类型。
const (
	PartTypeText       = "text"
	PartTypeToolResult = "tool-result"
)

// MessagePart 是消息内容的带标签变体：纯文本或结构化的工具调用结果。
type MessagePart struct {
	Type       string
	Text       string
	ToolName   string
	ToolResult json.RawMessage
}

// TextPart 构造一个文本片段。
func TextPart(text string) MessagePart {
	return MessagePart{Type: PartTypeText, Text: text}
}

// ToolResultPart 构造一个工具调用结果片段。
func ToolResultPart(toolName string, result json.RawMessage) MessagePart {
	return MessagePart{Type: PartTypeToolResult, ToolName: toolName, ToolResult: result}
}

type textPartJSON struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type toolPartJSON struct {
	Type     string          `json:"type"`
	ToolName string          `json:"toolName"`
	Result   json.RawMessage `json:"result"`
}

// MarshalJSON 按片段类型输出对应的 JSON 结构。
func (p MessagePart) MarshalJSON() ([]byte, error) {
	switch p.Type {
	case PartTypeText:
		return json.Marshal(textPartJSON{Type: p.Type, Text: p.Text})
	case PartTypeToolResult:
		return json.Marshal(toolPartJSON{Type: p.Type, ToolName: p.ToolName, Result: p.ToolResult})
	default:
		return nil, fmt.Errorf("unknown message part type %q", p.Type)
	}
}

// UnmarshalJSON 根据 type 标签还原片段，未知类型视为数据损坏。
func (p *MessagePart) UnmarshalJSON(data []byte) error {
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return err
	}
	switch probe.Type {
	case PartTypeText:
		var t textPartJSON
		if err := json.Unmarshal(data, &t); err != nil {
			return err
		}
		*p = MessagePart{Type: PartTypeText, Text: t.Text}
		return nil
	case PartTypeToolResult:
		var t toolPartJSON
		if err := json.Unmarshal(data, &t); err != nil {
			return err
		}
		if t.ToolName == "" {
			return errors.New("tool-result part missing toolName")
		}
		*p = MessagePart{Type: PartTypeToolResult, ToolName: t.ToolName, ToolResult: t.Result}
		return nil
	default:
		return fmt.Errorf("unknown message part type %q", probe.Type)
	}
}
