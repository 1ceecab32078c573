package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// DeviceIDSet 目标设备集合，以 JSON 数组存储
type DeviceIDSet []string

// NewDeviceIDSet 去重并去除空值，保持首次出现的顺序
func NewDeviceIDSet(ids []string) DeviceIDSet {
	seen := make(map[string]struct{}, len(ids))
	set := make(DeviceIDSet, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		set = append(set, id)
	}
	return set
}

func (s DeviceIDSet) Value() (driver.Value, error) {
	if s == nil {
		return "[]", nil
	}
	data, err := json.Marshal([]string(s))
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func (s *DeviceIDSet) Scan(value interface{}) error {
	var raw []byte
	switch v := value.(type) {
	case nil:
		*s = DeviceIDSet{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported DeviceIDSet source %T", value)
	}
	var ids []string
	if err := json.Unmarshal(raw, &ids); err != nil {
		return fmt.Errorf("decode target devices: %w", err)
	}
	*s = ids
	return nil
}

// Message 通知消息。创建后除 Status 外不可变
type Message struct {
	ID            string        `gorm:"type:varchar(64);primaryKey" json:"id"`
	Type          MessageType   `gorm:"type:varchar(16);not null" json:"type"`
	Content       string        `gorm:"type:text" json:"content"`
	ImageURL      string        `gorm:"type:varchar(1024)" json:"imageUrl,omitempty"`
	VideoURL      string        `gorm:"type:varchar(1024)" json:"videoUrl,omitempty"`
	AudioURL      string        `gorm:"type:varchar(1024)" json:"audioUrl,omitempty"`
	TargetDevices DeviceIDSet   `gorm:"type:text" json:"targetDevices"`
	Status        MessageStatus `gorm:"type:varchar(16);not null;default:'pending';index" json:"status"`
	CreatedAt     time.Time     `json:"createdAt"`
}

func (Message) TableName() string { return "messages" }

// Validate 校验消息类型与对应的媒体字段
func (m *Message) Validate() error {
	switch m.Type {
	case MessageTypeText:
		if strings.TrimSpace(m.Content) == "" {
			return fmt.Errorf("%w: TEXT requires content", ErrInvalidMessage)
		}
	case MessageTypeTextImage:
		if m.ImageURL == "" {
			return fmt.Errorf("%w: TEXT_IMAGE requires imageUrl", ErrInvalidMessage)
		}
	case MessageTypeVideo:
		if m.VideoURL == "" {
			return fmt.Errorf("%w: VIDEO requires videoUrl", ErrInvalidMessage)
		}
	case MessageTypeAudio:
		if m.AudioURL == "" {
			return fmt.Errorf("%w: AUDIO requires audioUrl", ErrInvalidMessage)
		}
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidMessage, m.Type)
	}
	return nil
}

// PushPayload 下发到设备的 message-push 内容
type PushPayload struct {
	ID        string      `json:"id"`
	Type      MessageType `json:"type"`
	Content   string      `json:"content"`
	ImageURL  string      `json:"imageUrl,omitempty"`
	VideoURL  string      `json:"videoUrl,omitempty"`
	AudioURL  string      `json:"audioUrl,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

func (m *Message) PushPayload(now time.Time) *PushPayload {
	return &PushPayload{
		ID:        m.ID,
		Type:      m.Type,
		Content:   m.Content,
		ImageURL:  m.ImageURL,
		VideoURL:  m.VideoURL,
		AudioURL:  m.AudioURL,
		Timestamp: now.UnixMilli(),
	}
}
