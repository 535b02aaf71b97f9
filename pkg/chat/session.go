package chat

import (
	"context"
	"regexp"
	"strings"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"

	"github.com/drorm/vmpilot/pkg/message"
	"github.com/drorm/vmpilot/pkg/usage"
)

// MarkerPrefix opens the identity line of a new conversation's response
const MarkerPrefix = "Chat id :"

// idAlphabet matches the token charset accepted by markerPattern
const idAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// idLength is the generated token length
const idLength = 8

// markerPattern matches the identity marker on the first line of an
// assistant message: "Chat id :<token>".
var markerPattern = regexp.MustCompile(`^Chat id :([A-Za-z0-9_-]+)\s*$`)

// Chat is one persisted conversation
type Chat struct {
	ID          string            `json:"chat_id"`
	Messages    []message.Message `json:"messages"`
	Usage       usage.Usage       `json:"usage"`
	ProjectRoot string            `json:"project_root,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// Bootstrapper runs one-time setup when a new conversation starts.
// A returned error is a blocking condition: the caller must short-circuit
// without invoking the agent loop.
type Bootstrapper interface {
	Bootstrap(ctx context.Context, projectRoot string) error
}

// Session resolves conversation identity for one inbound request and owns
// the chat's lifecycle for that request.
type Session struct {
	store        Store
	bootstrapper Bootstrapper
	projectRoot  string
	logger       zerolog.Logger

	chatID       string
	isNew        bool
	done         bool
	bootstrapErr error
}

// NewSession creates a session backed by the given store. The bootstrapper
// is optional.
func NewSession(store Store, bootstrapper Bootstrapper, projectRoot string, logger zerolog.Logger) *Session {
	return &Session{
		store:        store,
		bootstrapper: bootstrapper,
		projectRoot:  projectRoot,
		logger:       logger,
	}
}

// Resolve determines the conversation identity for this request. An
// explicit ID wins. Otherwise the history is scanned for an identity
// marker; the first marker in history order is honored. With no marker a
// fresh ID is generated and one-time bootstrap runs; a blocking bootstrap
// failure marks the session done.
func (s *Session) Resolve(ctx context.Context, messages []message.Message, explicitID string) string {
	if explicitID != "" {
		s.chatID = explicitID
		s.logger.Debug().Str("chat_id", explicitID).Msg("Chat id supplied explicitly")
		return s.chatID
	}

	if id := ScanMarker(messages); id != "" {
		s.chatID = id
		s.logger.Debug().Str("chat_id", id).Msg("Continuing existing chat")
		return s.chatID
	}

	s.chatID = NewChatID()
	s.isNew = true
	s.logger.Info().Str("chat_id", s.chatID).Msg("New chat started")

	if s.bootstrapper != nil {
		if err := s.bootstrapper.Bootstrap(ctx, s.projectRoot); err != nil {
			s.done = true
			s.bootstrapErr = err
			s.logger.Warn().Err(err).Str("chat_id", s.chatID).Msg("Bootstrap blocked the conversation")
		}
	}

	return s.chatID
}

// ScanMarker returns the chat ID embedded in the history, or empty.
// Only assistant messages with plain string content are scanned; block-list
// content is skipped even when its text would match.
func ScanMarker(messages []message.Message) string {
	for i := range messages {
		msg := &messages[i]
		if msg.Role != message.RoleAssistant || !msg.IsPlainText() {
			continue
		}
		firstLine, _, _ := strings.Cut(msg.Text, "\n")
		if m := markerPattern.FindStringSubmatch(firstLine); m != nil {
			return m[1]
		}
	}
	return ""
}

// NewChatID generates a fresh conversation token
func NewChatID() string {
	return gonanoid.MustGenerate(idAlphabet, idLength)
}

// ID returns the resolved chat ID; empty before Resolve
func (s *Session) ID() string { return s.chatID }

// IsNew reports whether Resolve started a new conversation
func (s *Session) IsNew() bool { return s.isNew }

// Done reports whether the session is finished before the loop ran,
// typically because bootstrap found a blocking condition.
func (s *Session) Done() bool { return s.done }

// BootstrapError returns the blocking bootstrap condition, if any
func (s *Session) BootstrapError() error { return s.bootstrapErr }

// MarkerLine renders the identity line emitted as the first output of a
// new conversation's response.
func (s *Session) MarkerLine() string {
	return MarkerPrefix + s.chatID
}

// Load fetches the persisted chat, or seeds a new one when absent
func (s *Session) Load(ctx context.Context) *Chat {
	chat, err := s.store.Get(ctx, s.chatID)
	if err == nil {
		return chat
	}
	if err != ErrNotFound {
		s.logger.Error().Err(err).Str("chat_id", s.chatID).Msg("Failed to load chat, starting empty")
	}
	now := time.Now()
	return &Chat{
		ID:          s.chatID,
		ProjectRoot: s.projectRoot,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Persist updates the stored chat with the turn's final state.
// Failures are logged, never propagated: persistence is best-effort.
func (s *Session) Persist(ctx context.Context, messages []message.Message, u usage.Usage) {
	chat := s.Load(ctx)
	chat.Messages = messages
	chat.Usage = chat.Usage.Add(u)
	chat.UpdatedAt = time.Now()

	if err := s.store.Save(ctx, chat); err != nil {
		s.logger.Error().Err(err).Str("chat_id", s.chatID).Msg("Failed to persist chat")
	}
}
