package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/leadline-crm/apps/api/internal/store"
)

type Logger struct {
	st *store.Store
}

func NewLogger(st *store.Store) *Logger {
	return &Logger{st: st}
}

type Entry struct {
	UserID     *uuid.UUID
	Action     string
	EntityType string
	EntityID   *uuid.UUID
	RequestID  string
	Metadata   map[string]any
}

func (l *Logger) Log(ctx context.Context, entry Entry) error {
	metadata := []byte("{}")
	if len(entry.Metadata) > 0 {
		encoded, err := json.Marshal(entry.Metadata)
		if err != nil {
			return fmt.Errorf("marshal metadata: %w", err)
		}
		metadata = encoded
	}

	stored := store.AuditEntry{
		UserID:     entry.UserID,
		Action:     entry.Action,
		EntityType: entry.EntityType,
		EntityID:   entry.EntityID,
		Metadata:   metadata,
	}
	if entry.RequestID != "" {
		stored.RequestID = &entry.RequestID
	}

	if err := l.st.InsertAuditEntry(ctx, stored); err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}
