package session

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/xaenox/command-center/internal/commands"
	"github.com/xaenox/command-center/internal/models"
)

// FallbackThreadTitle names the thread silently recreated when an agent's
// last thread is deleted, so the chat surface is never empty.
const FallbackThreadTitle = "General"

const newThreadTitle = "New Thread"

// ChatResult is the relay's non-streaming reply.
type ChatResult struct {
	Success     bool            `json:"success"`
	UserMessage *models.Message `json:"userMessage"`
	AIResponse  string          `json:"aiResponse"`
}

// UploadResult describes one stored attachment.
type UploadResult struct {
	StoragePath string `json:"storagePath"`
	PublicURL   string `json:"publicUrl"`
}

// API is the server surface the session consumes.
type API interface {
	ListThreads(ctx context.Context, agentID string) ([]models.Thread, error)
	CreateThread(ctx context.Context, agentID, title string) (*models.Thread, error)
	RenameThread(ctx context.Context, id, title string) (*models.Thread, error)
	SetThreadPinned(ctx context.Context, id string, pinned bool) (*models.Thread, error)
	DeleteThread(ctx context.Context, id string) error
	ClearThread(ctx context.Context, id string) error
	ListMessages(ctx context.Context, threadID string) ([]models.Message, error)
	SendChat(ctx context.Context, threadID, content, sender string) (*ChatResult, error)
	// StreamChat relays a turn with a streamed reply, invoking onDelta per
	// fragment and returning the full reply text.
	StreamChat(ctx context.Context, threadID, content, sender string, onDelta func(string)) (string, error)
}

// Uploader stores attachment bytes ahead of a send.
type Uploader interface {
	Upload(ctx context.Context, filename, contentType string, data []byte) (*UploadResult, error)
}

// Attachment is a staged file waiting in the compose box.
type Attachment struct {
	Name        string
	ContentType string
	Data        []byte
}

func (a Attachment) IsImage() bool {
	return strings.HasPrefix(a.ContentType, "image/")
}

// Session owns the UI-visible chat state for one agent: the thread list,
// the active thread's message cache, the compose box, and the pending
// indicator. It is reconciled from two independent channels (push and poll)
// through the idempotent Merge, and every in-flight result is tagged with
// the thread it was issued for so late arrivals after a thread switch are
// discarded.
type Session struct {
	mu       sync.Mutex
	api      API
	uploads  Uploader
	logger   *zap.Logger
	operator string

	agentID      string
	activeThread string
	threads      []models.Thread
	messages     []models.Message
	typing       bool

	input       string
	attachments []Attachment

	// streamText is the locally-synthesized partial assistant reply while
	// a stream is in flight, rendered after the persisted list.
	streamText string
}

func New(api API, uploads Uploader, agentID, operatorLabel string, logger *zap.Logger) *Session {
	return &Session{
		api:      api,
		uploads:  uploads,
		logger:   logger,
		operator: operatorLabel,
		agentID:  agentID,
	}
}

// --- accessors ---

func (s *Session) ActiveThread() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeThread
}

func (s *Session) Threads() []models.Thread {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Thread(nil), s.threads...)
}

func (s *Session) Messages() []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Message(nil), s.messages...)
}

func (s *Session) Typing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.typing
}

func (s *Session) Input() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.input
}

func (s *Session) SetInput(input string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.input = input
}

func (s *Session) Attachments() []Attachment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Attachment(nil), s.attachments...)
}

func (s *Session) StageAttachment(att Attachment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attachments = append(s.attachments, att)
}

func (s *Session) RemoveAttachment(idx int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if idx < 0 || idx >= len(s.attachments) {
		return
	}
	s.attachments = append(s.attachments[:idx], s.attachments[idx+1:]...)
}

// StreamText returns the in-flight partial assistant reply, empty when no
// stream is active.
func (s *Session) StreamText() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streamText
}

// --- thread lifecycle ---

// RefreshThreads reloads the agent's thread list. When the active thread no
// longer exists, selection moves to the most recent remaining thread.
func (s *Session) RefreshThreads(ctx context.Context) error {
	threads, err := s.api.ListThreads(ctx, s.agentID)
	if err != nil {
		return fmt.Errorf("error listing threads: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.threads = threads

	active := false
	for _, t := range threads {
		if t.ID == s.activeThread {
			active = true
			break
		}
	}
	if !active {
		if len(threads) > 0 {
			s.selectLocked(threads[0].ID)
		} else {
			s.selectLocked("")
		}
	}
	return nil
}

// SelectThread switches the active thread, clearing the previous thread's
// cache and pending state.
func (s *Session) SelectThread(threadID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selectLocked(threadID)
}

func (s *Session) selectLocked(threadID string) {
	if s.activeThread == threadID {
		return
	}
	s.activeThread = threadID
	s.messages = nil
	s.typing = false
	s.streamText = ""
}

// CreateThread starts a new conversation with a placeholder title and
// selects it.
func (s *Session) CreateThread(ctx context.Context) (*models.Thread, error) {
	thread, err := s.api.CreateThread(ctx, s.agentID, newThreadTitle)
	if err != nil {
		return nil, fmt.Errorf("error creating thread: %w", err)
	}

	s.mu.Lock()
	s.threads = append([]models.Thread{*thread}, s.threads...)
	s.selectLocked(thread.ID)
	s.mu.Unlock()

	return thread, nil
}

// DeleteThread removes a thread. Deleting the active thread selects the
// next-most-recent remaining thread, or silently creates a fallback thread
// when none remain, so a selection always exists.
func (s *Session) DeleteThread(ctx context.Context, threadID string) error {
	if err := s.api.DeleteThread(ctx, threadID); err != nil {
		return fmt.Errorf("error deleting thread: %w", err)
	}

	s.mu.Lock()
	remaining := s.threads[:0:0]
	for _, t := range s.threads {
		if t.ID != threadID {
			remaining = append(remaining, t)
		}
	}
	s.threads = remaining
	wasActive := s.activeThread == threadID

	if wasActive && len(remaining) > 0 {
		s.selectLocked(remaining[0].ID)
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	if !wasActive {
		return nil
	}

	fallback, err := s.api.CreateThread(ctx, s.agentID, FallbackThreadTitle)
	if err != nil {
		return fmt.Errorf("error creating fallback thread: %w", err)
	}

	s.mu.Lock()
	s.threads = []models.Thread{*fallback}
	s.selectLocked(fallback.ID)
	s.mu.Unlock()
	return nil
}

// RenameThread retitles a thread and updates the local list entry.
func (s *Session) RenameThread(ctx context.Context, threadID, title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return fmt.Errorf("thread title cannot be empty")
	}

	thread, err := s.api.RenameThread(ctx, threadID, title)
	if err != nil {
		return fmt.Errorf("error renaming thread: %w", err)
	}

	s.replaceThread(*thread)
	return nil
}

// PinThread toggles a thread's pinned flag and updates the local list entry.
func (s *Session) PinThread(ctx context.Context, threadID string, pinned bool) error {
	thread, err := s.api.SetThreadPinned(ctx, threadID, pinned)
	if err != nil {
		return fmt.Errorf("error pinning thread: %w", err)
	}

	s.replaceThread(*thread)
	return nil
}

func (s *Session) replaceThread(thread models.Thread) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.threads {
		if s.threads[i].ID == thread.ID {
			s.threads[i] = thread
			return
		}
	}
}

// ClearHistory deletes the active thread's messages in bulk.
func (s *Session) ClearHistory(ctx context.Context) error {
	s.mu.Lock()
	threadID := s.activeThread
	s.mu.Unlock()
	if threadID == "" {
		return nil
	}

	if err := s.api.ClearThread(ctx, threadID); err != nil {
		return fmt.Errorf("error clearing thread: %w", err)
	}

	s.mu.Lock()
	if s.activeThread == threadID {
		s.messages = nil
	}
	s.mu.Unlock()
	return nil
}

// --- reconciliation channels ---

// ApplyPush folds one realtime row into the cache. Rows for other threads
// are ignored; duplicates are dropped by Merge. A row from an agent clears
// the pending indicator.
func (s *Session) ApplyPush(msg models.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if msg.ThreadID != s.activeThread {
		return
	}

	s.messages = Merge(s.messages, msg)
	if msg.IsFromAgent(s.operator) {
		s.typing = false
	}
}

// ApplyPoll reconciles a full poll result. Results tagged with a thread
// that is no longer active are discarded. A row-count mismatch replaces the
// cache wholesale and clears the pending indicator; this is the backstop
// for missed push frames.
func (s *Session) ApplyPoll(threadID string, msgs []models.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if threadID != s.activeThread {
		return
	}

	if len(msgs) != len(s.messages) {
		s.messages = Merge(nil, msgs...)
		s.typing = false
	}
}

// RefreshMessages fetches the active thread's history and applies it as a
// poll cycle.
func (s *Session) RefreshMessages(ctx context.Context) error {
	s.mu.Lock()
	threadID := s.activeThread
	s.mu.Unlock()
	if threadID == "" {
		return nil
	}

	msgs, err := s.api.ListMessages(ctx, threadID)
	if err != nil {
		return fmt.Errorf("error listing messages: %w", err)
	}

	s.ApplyPoll(threadID, msgs)
	return nil
}

// --- send pipeline ---

// Send submits the compose box. Slash-command prefixes complete instead of
// sending. Staged attachments are uploaded first; any upload failure aborts
// the whole send and restores the compose box unchanged. The result is
// discarded if the user switched threads while the relay was in flight.
func (s *Session) Send(ctx context.Context) error {
	s.mu.Lock()
	input := strings.TrimSpace(s.input)
	attachments := append([]Attachment(nil), s.attachments...)
	threadID := s.activeThread

	if (input == "" && len(attachments) == 0) || threadID == "" {
		s.mu.Unlock()
		return nil
	}

	// Tab-style completion: a bare slash prefix expands to the first match
	// rather than sending.
	if strings.HasPrefix(input, "/") && !strings.Contains(input, " ") {
		if matches := commands.Match(input); len(matches) > 0 {
			s.input = matches[0].Name + " "
			s.mu.Unlock()
			return nil
		}
	}

	s.input = ""
	s.attachments = nil
	s.typing = true
	s.mu.Unlock()

	content, err := s.composeContent(ctx, input, attachments)
	if err != nil {
		s.restore(input, attachments)
		return err
	}

	result, err := s.api.SendChat(ctx, threadID, content, s.operator)
	if err != nil {
		s.restore(input, attachments)
		return fmt.Errorf("error sending message: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.activeThread != threadID {
		// Stale in-flight result after a thread switch.
		return nil
	}
	if result.UserMessage != nil {
		s.messages = Merge(s.messages, *result.UserMessage)
	}
	s.typing = false
	return nil
}

// SendStreaming submits the compose box through the streaming relay,
// surfacing the partial reply via StreamText as fragments arrive.
func (s *Session) SendStreaming(ctx context.Context) error {
	s.mu.Lock()
	input := strings.TrimSpace(s.input)
	attachments := append([]Attachment(nil), s.attachments...)
	threadID := s.activeThread

	if (input == "" && len(attachments) == 0) || threadID == "" {
		s.mu.Unlock()
		return nil
	}

	s.input = ""
	s.attachments = nil
	s.typing = true
	s.streamText = ""
	s.mu.Unlock()

	content, err := s.composeContent(ctx, input, attachments)
	if err != nil {
		s.restore(input, attachments)
		return err
	}

	_, err = s.api.StreamChat(ctx, threadID, content, s.operator, func(delta string) {
		s.mu.Lock()
		if s.activeThread == threadID {
			s.streamText += delta
		}
		s.mu.Unlock()
	})

	s.mu.Lock()
	if s.activeThread == threadID {
		// The persisted row arrives via push or poll; the pseudo-message
		// is done either way.
		s.streamText = ""
		s.typing = false
	}
	s.mu.Unlock()

	if err != nil {
		s.restore(input, attachments)
		return fmt.Errorf("error streaming message: %w", err)
	}
	return nil
}

// composeContent uploads staged attachments and appends their references to
// the message body.
func (s *Session) composeContent(ctx context.Context, input string, attachments []Attachment) (string, error) {
	var fileLines []string
	for _, att := range attachments {
		result, err := s.uploads.Upload(ctx, att.Name, att.ContentType, att.Data)
		if err != nil {
			return "", fmt.Errorf("error uploading %s: %w", att.Name, err)
		}
		kind := "File"
		if att.IsImage() {
			kind = "Image"
		}
		fileLines = append(fileLines,
			fmt.Sprintf("[%s: %s](%s) (%s)", kind, att.Name, result.PublicURL, FormatBytes(int64(len(att.Data)))))
	}

	var parts []string
	if input != "" {
		parts = append(parts, input)
	}
	if len(fileLines) > 0 {
		parts = append(parts, strings.Join(fileLines, "\n"))
	}
	return strings.Join(parts, "\n\n"), nil
}

// restore puts the compose box back exactly as it was before a failed send.
func (s *Session) restore(input string, attachments []Attachment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.input = input
	s.attachments = attachments
	s.typing = false
}

// FormatBytes renders a byte count for attachment reference lines.
func FormatBytes(bytes int64) string {
	if bytes <= 0 {
		return "0 B"
	}
	sizes := []string{"B", "KB", "MB", "GB"}
	i := int(math.Floor(math.Log(float64(bytes)) / math.Log(1024)))
	if i >= len(sizes) {
		i = len(sizes) - 1
	}
	value := float64(bytes) / math.Pow(1024, float64(i))
	return fmt.Sprintf("%s %s", trimZero(value), sizes[i])
}

func trimZero(v float64) string {
	formatted := fmt.Sprintf("%.1f", v)
	return strings.TrimSuffix(formatted, ".0")
}
