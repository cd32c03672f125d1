package notify

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/yamdb/yamdb-api/pkg/logger"
	"go.uber.org/zap"
)

// Mailbox is a file-backed Notifier: every message is appended as one JSON
// line and synced before Send returns. It stands in for SMTP in development.
type Mailbox struct {
	filePath string
	file     *os.File
	mu       sync.Mutex
}

// NewMailbox opens (or creates) the mailbox file inside dir.
func NewMailbox(dir string) (*Mailbox, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	filePath := filepath.Join(dir, "mailbox.jsonl")
	file, err := os.OpenFile(filePath, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}

	return &Mailbox{
		filePath: filePath,
		file:     file,
	}, nil
}

func (m *Mailbox) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	start := time.Now()
	m.mu.Lock()
	defer m.mu.Unlock()

	if msg.SentAt.IsZero() {
		msg.SentAt = start.UTC()
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	if _, err := m.file.Write(append(data, '\n')); err != nil {
		logger.Log.Error("Mailbox: failed to write message",
			zap.String("to", msg.To),
			zap.Error(err),
		)
		return err
	}

	if err := m.file.Sync(); err != nil {
		logger.Log.Error("Mailbox: failed to sync to disk",
			zap.String("to", msg.To),
			zap.Error(err),
		)
		return err
	}

	logger.Log.Debug("Mailbox: message stored",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.Duration("duration", time.Since(start)),
	)
	return nil
}

// ReadAll returns every stored message in send order.
func (m *Mailbox) ReadAll() ([]Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	file, err := os.Open(m.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return []Message{}, nil
		}
		return nil, err
	}
	defer file.Close()

	messages := []Message{}
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var msg Message
		if err := json.Unmarshal(scanner.Bytes(), &msg); err != nil {
			continue
		}
		messages = append(messages, msg)
	}

	return messages, scanner.Err()
}

func (m *Mailbox) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.file.Close()
}
