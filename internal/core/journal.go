package core

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"herdcore/internal/blob"
	"io"
	"strings"
	"time"
)

const (
	defaultJournalPrefix = "journal"
	journalStampLayout   = "20060102T150405.000000000Z"
)

// JournalEntry is the archived form of one committed cascade.
type JournalEntry struct {
	Operation  string      `json:"operation"`
	FarmerID   string      `json:"farmer_id,omitempty"`
	EntityID   string      `json:"entity_id"`
	RecordedAt time.Time   `json:"recorded_at"`
	Changes    []Change    `json:"changes"`
	Violations []Violation `json:"violations,omitempty"`
}

// Journal receives every committed cascade.
type Journal interface {
	Archive(ctx context.Context, entry JournalEntry) error
}

// BlobJournal writes entries as JSON objects into a blob store, one object per
// cascade, keyed <prefix>/<entity id>/<timestamp>-<operation>.json.
type BlobJournal struct {
	store  blob.Store
	prefix string
}

// NewBlobJournal returns a journal rooted at prefix (default "journal").
func NewBlobJournal(store blob.Store, prefix string) *BlobJournal {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		prefix = defaultJournalPrefix
	}
	return &BlobJournal{store: store, prefix: prefix}
}

func (j *BlobJournal) entityPrefix(entityID string) string {
	if entityID == "" {
		entityID = "_"
	}
	return j.prefix + "/" + entityID + "/"
}

func (j *BlobJournal) key(entry JournalEntry) string {
	stamp := entry.RecordedAt.UTC().Format(journalStampLayout)
	return j.entityPrefix(entry.EntityID) + stamp + "-" + entry.Operation + ".json"
}

// Archive stores entry. Two entries for the same entity, operation and instant
// collide and the second is rejected with blob.ErrExists.
func (j *BlobJournal) Archive(ctx context.Context, entry JournalEntry) error {
	if entry.Operation == "" {
		return errors.New("journal entry requires an operation")
	}
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode journal entry: %w", err)
	}
	opts := blob.PutOptions{
		ContentType: "application/json",
		Metadata: map[string]string{
			"operation": entry.Operation,
			"farmer_id": entry.FarmerID,
		},
	}
	if _, err := j.store.Put(ctx, j.key(entry), bytes.NewReader(payload), opts); err != nil {
		return fmt.Errorf("archive %s: %w", entry.Operation, err)
	}
	return nil
}

// Entries returns the archived cascades of entityID in recording order.
func (j *BlobJournal) Entries(ctx context.Context, entityID string) ([]JournalEntry, error) {
	infos, err := j.store.List(ctx, j.entityPrefix(entityID))
	if err != nil {
		return nil, fmt.Errorf("list journal: %w", err)
	}
	entries := make([]JournalEntry, 0, len(infos))
	for _, info := range infos {
		entry, err := j.read(ctx, info.Key)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (j *BlobJournal) read(ctx context.Context, key string) (JournalEntry, error) {
	_, rc, err := j.store.Get(ctx, key)
	if err != nil {
		return JournalEntry{}, fmt.Errorf("read journal %s: %w", key, err)
	}
	defer func() { _ = rc.Close() }()
	raw, err := io.ReadAll(rc)
	if err != nil {
		return JournalEntry{}, fmt.Errorf("read journal %s: %w", key, err)
	}
	var entry JournalEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return JournalEntry{}, fmt.Errorf("decode journal %s: %w", key, err)
	}
	return entry, nil
}
