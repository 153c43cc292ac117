package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const (
	sessionFile    = "session.json"
	uploadsDir     = "uploads"
	sessionDirGlob = "chat_*"
	defaultTitle   = "Untitled Chat"
	sessionLock    = 5 * time.Second
)

// TimestampLayout is the format of created_at and updated_at.
const TimestampLayout = "2006-01-02T15:04:05.000000"

// ChatID identifies a session. It unmarshals from a JSON string or number.
type ChatID string

func (id *ChatID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ChatID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("chat_id must be a string or number: %w", err)
	}
	*id = ChatID(n.String())
	return nil
}

// Session is a stored chat session. Messages are kept as raw JSON so
// fields this package does not know about survive a save and load.
type Session struct {
	ChatID    ChatID            `json:"chat_id"`
	Title     string            `json:"title"`
	CreatedAt string            `json:"created_at"`
	UpdatedAt string            `json:"updated_at"`
	Messages  []json.RawMessage `json:"messages"`
}

// Summary describes a session without its messages.
type Summary struct {
	ChatID       ChatID `json:"chat_id"`
	Title        string `json:"title"`
	CreatedAt    string `json:"created_at"`
	UpdatedAt    string `json:"updated_at"`
	MessageCount int    `json:"message_count"`
}

// attachment is the part of a message file entry that gets written to disk.
type attachment struct {
	Name     string          `json:"name"`
	Content  json.RawMessage `json:"content"`
	FileData json.RawMessage `json:"fileData"`
}

// SessionStore reads and writes sessions under the active Root.
type SessionStore struct {
	root   *Root
	logger *slog.Logger
	now    func() time.Time
}

// NewSessionStore creates a store bound to root.
func NewSessionStore(root *Root, logger *slog.Logger) *SessionStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionStore{root: root, logger: logger, now: time.Now}
}

// Dir returns the directory of session id under the active root.
func (s *SessionStore) Dir(id ChatID) (string, error) {
	root, err := s.root.Path()
	if err != nil {
		return "", err
	}
	return filepath.Join(root, "chat_"+string(id)), nil
}

// Save writes sess and its attachments and returns the session directory.
// An empty Title becomes "Untitled Chat" and an empty CreatedAt becomes
// now; UpdatedAt is always set to now. Cancellation is honored until the
// session record is written.
func (s *SessionStore) Save(ctx context.Context, sess Session) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if _, err := s.root.Path(); err != nil {
		return "", err
	}
	if sess.ChatID == "" {
		return "", ErrMissingIdentifier
	}

	dir, err := s.Dir(sess.ChatID)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, sessionDirMode); err != nil {
		return "", &StorageError{Op: "save", Entity: "session", ID: string(sess.ChatID), Err: err}
	}

	stamp := s.now().Format(TimestampLayout)
	if sess.Title == "" {
		sess.Title = defaultTitle
	}
	if sess.CreatedAt == "" {
		sess.CreatedAt = stamp
	}
	sess.UpdatedAt = stamp
	if sess.Messages == nil {
		sess.Messages = []json.RawMessage{}
	}

	data, err := encodeSession(&sess)
	if err != nil {
		return "", &StorageError{Op: "save", Entity: "session", ID: string(sess.ChatID), Err: err}
	}

	path := filepath.Join(dir, sessionFile)
	lock := NewFileLock(path)
	if err := lock.Lock(sessionLock); err != nil {
		return "", &StorageError{Op: "lock", Entity: "session", ID: string(sess.ChatID), Err: err}
	}
	defer lock.Unlock()

	// Once the record is written its attachments are written too.
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := WriteFileAtomic(path, data, sessionFileMode); err != nil {
		return "", &StorageError{Op: "save", Entity: "session", ID: string(sess.ChatID), Err: err}
	}

	n, err := s.saveAttachments(dir, sess.Messages)
	if err != nil {
		return "", err
	}

	s.logger.Info("storage: session saved",
		slog.String("chat_id", string(sess.ChatID)),
		slog.String("title", sess.Title),
		slog.Int("attachments", n))
	return dir, nil
}

func encodeSession(sess *Session) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(sess); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// saveAttachments writes every message file entry that has content.
func (s *SessionStore) saveAttachments(dir string, messages []json.RawMessage) (int, error) {
	written := 0
	for _, raw := range messages {
		var msg struct {
			Files []attachment `json:"files"`
		}
		if err := json.Unmarshal(raw, &msg); err != nil {
			// Messages that are not objects, or whose files field has another
			// shape, carry no attachments.
			continue
		}
		for _, f := range msg.Files {
			content := f.Content
			if !hasValue(content) {
				content = f.FileData
			}
			if !hasValue(content) {
				continue
			}

			name := f.Name
			if name == "" {
				name = unnamedFile
			}
			target := filepath.Join(dir, uploadsDir, Sanitize(name))
			if err := WriteFileAtomic(target, attachmentBytes(content), sessionFileMode); err != nil {
				return written, &StorageError{Op: "save", Entity: "attachment", ID: name, Err: err}
			}
			written++
		}
	}
	return written, nil
}

// hasValue reports whether raw is a non-empty JSON value.
func hasValue(raw json.RawMessage) bool {
	switch strings.TrimSpace(string(raw)) {
	case "", "null", `""`, "[]", "{}", "false", "0":
		return false
	}
	return true
}

// attachmentBytes returns string content as UTF-8 text and any other value
// as its JSON encoding.
func attachmentBytes(raw json.RawMessage) []byte {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return []byte(s)
	}
	return []byte(raw)
}

// LoadAll returns summaries of every readable session, most recently
// updated first. Unreadable sessions are logged and skipped.
func (s *SessionStore) LoadAll(ctx context.Context) ([]Summary, error) {
	root, err := s.root.Path()
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, &StorageError{Op: "list", Entity: "session", Err: err}
	}

	summaries := make([]Summary, 0, len(entries))
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		// Only the entry name is matched; the root may contain glob
		// metacharacters.
		if ok, _ := filepath.Match(sessionDirGlob, entry.Name()); !ok {
			continue
		}
		dir := filepath.Join(root, entry.Name())
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			continue
		}
		sess, err := readSession(filepath.Join(dir, sessionFile))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			s.logger.Warn("storage: skipping unreadable session",
				slog.String("dir", dir),
				slog.String("error", err.Error()))
			continue
		}
		summaries = append(summaries, Summary{
			ChatID:       sess.ChatID,
			Title:        sess.Title,
			CreatedAt:    sess.CreatedAt,
			UpdatedAt:    sess.UpdatedAt,
			MessageCount: len(sess.Messages),
		})
	}

	sort.SliceStable(summaries, func(i, j int) bool {
		return summaries[i].UpdatedAt > summaries[j].UpdatedAt
	})
	s.logger.Info("storage: sessions loaded", slog.Int("count", len(summaries)))
	return summaries, nil
}

// LoadOne returns session id, or ErrNotFound.
func (s *SessionStore) LoadOne(ctx context.Context, id ChatID) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dir, err := s.Dir(id)
	if err != nil {
		return nil, err
	}
	sess, err := readSession(filepath.Join(dir, sessionFile))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, &StorageError{Op: "load", Entity: "session", ID: string(id), Err: ErrNotFound}
	}
	if err != nil {
		return nil, &StorageError{Op: "load", Entity: "session", ID: string(id), Err: err}
	}
	return sess, nil
}

func readSession(path string) (*Session, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if sess.Messages == nil {
		sess.Messages = []json.RawMessage{}
	}
	return &sess, nil
}
