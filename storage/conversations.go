// Package storage persists conversations as JSON files and maintains a
// sqlite search index over their messages. The store is the single
// serialization point for history mutation: every write path takes one
// mutex, which is what guarantees messages land in append order even
// when multiple conversations stream concurrently.
package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"parley/model"

	"github.com/google/uuid"
	"github.com/sahilm/fuzzy"
)

// Conversation is one persisted chat.
type Conversation struct {
	ID           string          `json:"id"`
	Title        string          `json:"title"`
	Model        string          `json:"model"`
	Provider     string          `json:"provider"`
	SystemPrompt string          `json:"system_prompt,omitempty"`
	ToolServers  []string        `json:"tool_servers,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
	Messages     []model.Message `json:"messages"`
}

// ConversationMetadata is the lightweight listing view.
type ConversationMetadata struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Model        string    `json:"model"`
	Provider     string    `json:"provider"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	MessageCount int       `json:"message_count"`
}

// ConversationStore keeps one JSON file per conversation under
// dataDir/conversations. An optional SearchIndex receives every
// appended message.
type ConversationStore struct {
	dir   string
	mu    sync.Mutex
	index *SearchIndex
}

// NewConversationStore creates the store, making the directory with
// user-only permissions. index may be nil.
func NewConversationStore(dataDir string, index *SearchIndex) (*ConversationStore, error) {
	dir := filepath.Join(dataDir, "conversations")
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create conversations directory: %w", err)
	}
	return &ConversationStore{dir: dir, index: index}, nil
}

// Create starts a new empty conversation.
func (s *ConversationStore) Create(title, providerID, modelName string) (*Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	conv := &Conversation{
		ID:        uuid.NewString(),
		Title:     title,
		Model:     modelName,
		Provider:  providerID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.write(conv); err != nil {
		return nil, err
	}
	return conv, nil
}

// Save persists the whole conversation.
func (s *ConversationStore) Save(conv *Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv.UpdatedAt = time.Now()
	return s.write(conv)
}

// Append adds one message to a conversation's history. Implements
// engine.MessageStore.
func (s *ConversationStore) Append(conversationID string, msg model.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, err := s.read(conversationID)
	if err != nil {
		return err
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	conv.Messages = append(conv.Messages, msg)
	conv.UpdatedAt = time.Now()
	if err := s.write(conv); err != nil {
		return err
	}

	if s.index != nil {
		if err := s.index.Index(conversationID, msg); err != nil {
			// The conversation file is the source of truth; a stale
			// index is tolerable, a lost message is not.
			return nil
		}
	}
	return nil
}

// History returns a conversation's messages.
func (s *ConversationStore) History(conversationID string) ([]model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, err := s.read(conversationID)
	if err != nil {
		return nil, err
	}
	return conv.Messages, nil
}

// Load returns the full conversation.
func (s *ConversationStore) Load(conversationID string) (*Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read(conversationID)
}

// List returns metadata for every conversation, newest first.
func (s *ConversationStore) List() ([]ConversationMetadata, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read conversations directory: %w", err)
	}

	var metas []ConversationMetadata
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.dir, entry.Name()))
		if err != nil {
			continue
		}
		var conv Conversation
		if err := json.Unmarshal(data, &conv); err != nil {
			// Skip corrupted files rather than failing the listing.
			continue
		}
		metas = append(metas, ConversationMetadata{
			ID:           conv.ID,
			Title:        conv.Title,
			Model:        conv.Model,
			Provider:     conv.Provider,
			CreatedAt:    conv.CreatedAt,
			UpdatedAt:    conv.UpdatedAt,
			MessageCount: len(conv.Messages),
		})
	}

	sort.Slice(metas, func(i, j int) bool {
		return metas[i].UpdatedAt.After(metas[j].UpdatedAt)
	})
	return metas, nil
}

// Delete removes a conversation and its index entries.
func (s *ConversationStore) Delete(conversationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path(conversationID)); err != nil {
		return fmt.Errorf("failed to delete conversation file: %w", err)
	}
	if s.index != nil {
		_ = s.index.DeleteConversation(conversationID)
	}
	return nil
}

// SetTitle renames a conversation.
func (s *ConversationStore) SetTitle(conversationID, title string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, err := s.read(conversationID)
	if err != nil {
		return err
	}
	conv.Title = title
	conv.UpdatedAt = time.Now()
	return s.write(conv)
}

// TruncateFrom drops the message with the given ID and everything
// after it. This is the edit-and-regenerate path: the caller re-appends
// the edited message and starts a fresh turn.
func (s *ConversationStore) TruncateFrom(conversationID, messageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, err := s.read(conversationID)
	if err != nil {
		return err
	}

	cut := -1
	for i, msg := range conv.Messages {
		if msg.ID == messageID {
			cut = i
			break
		}
	}
	if cut == -1 {
		return fmt.Errorf("message %s not found in conversation %s", messageID, conversationID)
	}

	removed := conv.Messages[cut:]
	conv.Messages = conv.Messages[:cut]
	conv.UpdatedAt = time.Now()
	if err := s.write(conv); err != nil {
		return err
	}

	if s.index != nil {
		for _, msg := range removed {
			_ = s.index.DeleteMessage(msg.ID)
		}
	}
	return nil
}

// SearchMessages runs a full-text query over the index. A store built
// without an index finds nothing.
func (s *ConversationStore) SearchMessages(query string, limit int) ([]MessageMatch, error) {
	if s.index == nil {
		return nil, nil
	}
	return s.index.Search(query, limit)
}

// SearchTitles fuzzy-matches conversation titles and returns matching
// metadata, best match first.
func (s *ConversationStore) SearchTitles(query string) ([]ConversationMetadata, error) {
	metas, err := s.List()
	if err != nil {
		return nil, err
	}
	if query == "" {
		return metas, nil
	}

	titles := make([]string, len(metas))
	for i, m := range metas {
		titles[i] = m.Title
	}

	matches := fuzzy.Find(query, titles)
	out := make([]ConversationMetadata, 0, len(matches))
	for _, m := range matches {
		out = append(out, metas[m.Index])
	}
	return out, nil
}

func (s *ConversationStore) path(id string) string {
	return filepath.Join(s.dir, id+".json")
}

func (s *ConversationStore) read(id string) (*Conversation, error) {
	data, err := os.ReadFile(s.path(id))
	if err != nil {
		return nil, fmt.Errorf("failed to read conversation file: %w", err)
	}
	var conv Conversation
	if err := json.Unmarshal(data, &conv); err != nil {
		return nil, fmt.Errorf("failed to unmarshal conversation: %w", err)
	}
	return &conv, nil
}

func (s *ConversationStore) write(conv *Conversation) error {
	data, err := json.MarshalIndent(conv, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal conversation: %w", err)
	}
	// Conversation files hold sensitive history; keep them user-only.
	if err := os.WriteFile(s.path(conv.ID), data, 0600); err != nil {
		return fmt.Errorf("failed to write conversation file: %w", err)
	}
	return nil
}
