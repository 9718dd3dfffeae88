package storage

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"

	"parley/model"

	_ "modernc.org/sqlite"
)

// MessageMatch is one full-text search hit.
type MessageMatch struct {
	ConversationID string
	MessageID      string
	Role           string
	Preview        string
}

// SearchIndex is a sqlite-backed index over persisted message text,
// fed by ConversationStore.Append. Queries are case-insensitive
// substring matches.
type SearchIndex struct {
	db *sql.DB
}

// NewSearchIndex opens (or creates) the index database under dataDir.
func NewSearchIndex(dataDir string) (*SearchIndex, error) {
	dbPath := filepath.Join(dataDir, "messages.db")

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open search index: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping search index: %w", err)
	}

	idx := &SearchIndex{db: db}
	if err := idx.initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize search index: %w", err)
	}
	return idx, nil
}

func (idx *SearchIndex) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		conversation_id TEXT NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id);
	`
	_, err := idx.db.Exec(schema)
	return err
}

// Index records one message. Messages without text (pure tool-result
// or media messages) index their tool result content instead.
func (idx *SearchIndex) Index(conversationID string, msg model.Message) error {
	content := msg.Text()
	if content == "" {
		var parts []string
		for _, res := range msg.ToolRes {
			parts = append(parts, res.Content)
		}
		content = strings.Join(parts, "\n")
	}
	if content == "" {
		return nil
	}

	_, err := idx.db.Exec(
		`INSERT OR REPLACE INTO messages (id, conversation_id, role, content, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		msg.ID, conversationID, msg.Role, content, msg.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to index message: %w", err)
	}
	return nil
}

// Search returns up to limit matches for a substring query, newest
// first.
func (idx *SearchIndex) Search(query string, limit int) ([]MessageMatch, error) {
	if query == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 50
	}

	pattern := "%" + escapeLike(query) + "%"
	rows, err := idx.db.Query(
		`SELECT conversation_id, id, role, content FROM messages
		 WHERE content LIKE ? ESCAPE '\'
		 ORDER BY created_at DESC LIMIT ?`,
		pattern, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search messages: %w", err)
	}
	defer rows.Close()

	var matches []MessageMatch
	for rows.Next() {
		var m MessageMatch
		var content string
		if err := rows.Scan(&m.ConversationID, &m.MessageID, &m.Role, &content); err != nil {
			return nil, fmt.Errorf("failed to scan search result: %w", err)
		}
		m.Preview = preview(content, query)
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

// DeleteMessage drops one message from the index.
func (idx *SearchIndex) DeleteMessage(messageID string) error {
	_, err := idx.db.Exec(`DELETE FROM messages WHERE id = ?`, messageID)
	return err
}

// DeleteConversation drops all of a conversation's messages.
func (idx *SearchIndex) DeleteConversation(conversationID string) error {
	_, err := idx.db.Exec(`DELETE FROM messages WHERE conversation_id = ?`, conversationID)
	return err
}

// Close releases the database handle.
func (idx *SearchIndex) Close() error {
	return idx.db.Close()
}

func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}

// preview clips a window of content around the first occurrence of the
// query so search results show the hit in context.
func preview(content, query string) string {
	const window = 40

	idx := strings.Index(strings.ToLower(content), strings.ToLower(query))
	if idx == -1 {
		if len(content) > 2*window {
			return content[:2*window] + "..."
		}
		return content
	}

	start := idx - window
	if start < 0 {
		start = 0
	}
	end := idx + len(query) + window
	if end > len(content) {
		end = len(content)
	}

	out := content[start:end]
	if start > 0 {
		out = "..." + out
	}
	if end < len(content) {
		out += "..."
	}
	return out
}
