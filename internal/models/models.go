package models

import "time"

// UserSender is the reserved sender label for messages typed by the human
// operator. Every other label is treated as an agent.
const UserSender = "user"

// Thread represents a named conversation scoped to one agent.
type Thread struct {
	ID        string    `json:"id"`
	AgentID   string    `json:"agent_id"`
	Title     string    `json:"title"`
	Pinned    bool      `json:"pinned"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Message represents a single chat turn. ThreadID is empty for orphaned
// messages; they are tolerated but never displayed.
type Message struct {
	ID        string          `json:"id"`
	ThreadID  string          `json:"thread_id,omitempty"`
	AgentName string          `json:"agent_name"`
	Content   string          `json:"content"`
	Metadata  MessageMetadata `json:"metadata"`
	CreatedAt time.Time       `json:"created_at"`
}

// IsFromAgent reports whether the message came from something other than
// the human operator or the given operator alias.
func (m *Message) IsFromAgent(operatorAlias string) bool {
	return m.AgentName != UserSender && m.AgentName != operatorAlias
}

// MessageMetadata is the free-form origin tag stored alongside each message.
type MessageMetadata struct {
	Source    string `json:"source,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
}

// FileUpload records metadata for a blob stored through the upload flow.
type FileUpload struct {
	ID          string    `json:"id"`
	Filename    string    `json:"filename"`
	StoragePath string    `json:"storage_path"`
	ContentType string    `json:"content_type"`
	SizeBytes   int64     `json:"size_bytes"`
	UploadedBy  string    `json:"uploaded_by"`
	CreatedAt   time.Time `json:"created_at"`
}

// StoreStats is a point-in-time row census used by the health surface.
type StoreStats struct {
	Threads  int64 `json:"chat_threads"`
	Messages int64 `json:"chat_messages"`
	Uploads  int64 `json:"file_uploads"`
}
