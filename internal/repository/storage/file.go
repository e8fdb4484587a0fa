package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"sync"

	json "github.com/goccy/go-json"
	"github.com/klauspost/compress/zstd"

	"github.com/oshokin/alarm-engine/internal/config"
	domain "github.com/oshokin/alarm-engine/internal/domain/alarm"
)

const (
	alarmsSuffix = ".alarms.json"
	eventsSuffix = ".events.json.zst"
)

// FileRepository persists alarms and events under a directory on disk.
type FileRepository struct {
	// dir is the data directory.
	dir string
	// mu serializes access to the partition files.
	mu sync.Mutex
}

// alarmsDocument is the on-disk layout of an alarm partition.
type alarmsDocument struct {
	Owner  string          `json:"owner"`
	Alarms []*domain.Alarm `json:"alarms"`
}

// NewFileRepository creates a repository rooted at dir.
func NewFileRepository(dir string) *FileRepository {
	return &FileRepository{
		dir: filepath.Clean(dir),
	}
}

// RetrieveAlarms reads the alarm partition; a missing file yields no alarms.
func (r *FileRepository) RetrieveAlarms(_ context.Context, ownerID string) ([]*domain.Alarm, error) {
	path, err := r.partitionPath(ownerID, alarmsSuffix)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	contents, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []*domain.Alarm{}, nil
		}

		return nil, fmt.Errorf("read alarms file: %w", err)
	}

	var document alarmsDocument
	if err = json.Unmarshal(contents, &document); err != nil {
		return nil, fmt.Errorf("decode alarms file: %w", err)
	}

	if document.Alarms == nil {
		document.Alarms = []*domain.Alarm{}
	}

	return document.Alarms, nil
}

// StoreAlarms rewrites the alarm partition atomically.
func (r *FileRepository) StoreAlarms(_ context.Context, alarms []*domain.Alarm, ownerID string) error {
	path, err := r.partitionPath(ownerID, alarmsSuffix)
	if err != nil {
		return err
	}

	if alarms == nil {
		alarms = []*domain.Alarm{}
	}

	data, err := json.MarshalIndent(alarmsDocument{Owner: ownerID, Alarms: alarms}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode alarms: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	return r.writeFile(path, data)
}

// StoreAlarmEvents appends events to the compressed history of the partition.
// Every batch is written as one zstd frame of newline-delimited JSON.
func (r *FileRepository) StoreAlarmEvents(_ context.Context, events []domain.Event, ownerID string) error {
	path, err := r.partitionPath(ownerID, eventsSuffix)
	if err != nil {
		return err
	}

	if len(events) == 0 {
		return nil
	}

	var batch bytes.Buffer

	encoder := json.NewEncoder(&batch)
	for _, event := range events {
		if err = encoder.Encode(event); err != nil {
			return fmt.Errorf("encode event %s: %w", event.ID, err)
		}
	}

	compressor, err := zstd.NewWriter(nil)
	if err != nil {
		return fmt.Errorf("create zstd writer: %w", err)
	}

	frame := compressor.EncodeAll(batch.Bytes(), nil)

	if err = compressor.Close(); err != nil {
		return fmt.Errorf("flush zstd writer: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	return r.appendFile(path, frame)
}

// RetrieveAlarmEvents reads the compressed history of the partition.
func (r *FileRepository) RetrieveAlarmEvents(_ context.Context, ownerID string) ([]domain.Event, error) {
	path, err := r.partitionPath(ownerID, eventsSuffix)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	return readEvents(path)
}

// readEvents decodes an event log; a missing file yields an empty history.
func readEvents(path string) ([]domain.Event, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []domain.Event{}, nil
		}

		return nil, fmt.Errorf("open events file: %w", err)
	}

	defer func() {
		_ = file.Close()
	}()

	decoder, err := zstd.NewReader(file)
	if err != nil {
		return nil, fmt.Errorf("create zstd reader: %w", err)
	}

	defer decoder.Close()

	data, err := io.ReadAll(decoder)
	if err != nil {
		return nil, fmt.Errorf("decompress events: %w", err)
	}

	events := []domain.Event{}
	stream := json.NewDecoder(bytes.NewReader(data))

	for {
		var event domain.Event

		err = stream.Decode(&event)
		if errors.Is(err, io.EOF) {
			return events, nil
		}

		if err != nil {
			return nil, fmt.Errorf("decode events: %w", err)
		}

		events = append(events, event)
	}
}

// appendFile adds data at the end of path, creating it when missing.
func (r *FileRepository) appendFile(path string, data []byte) error {
	if err := os.MkdirAll(r.dir, config.DefaultDirPermissions); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, config.DefaultFilePermissions)
	if err != nil {
		return fmt.Errorf("open %s: %w", filepath.Base(path), err)
	}

	if _, err = file.Write(data); err != nil {
		_ = file.Close()

		return fmt.Errorf("append %s: %w", filepath.Base(path), err)
	}

	if err = file.Close(); err != nil {
		return fmt.Errorf("close %s: %w", filepath.Base(path), err)
	}

	return nil
}

// writeFile replaces path through a temporary file and rename.
func (r *FileRepository) writeFile(path string, data []byte) error {
	if err := os.MkdirAll(r.dir, config.DefaultDirPermissions); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, config.DefaultFilePermissions); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}

	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace %s: %w", filepath.Base(path), err)
	}

	return nil
}

// partitionPath maps an owner key to a file name that cannot escape dir.
func (r *FileRepository) partitionPath(ownerID, suffix string) (string, error) {
	if ownerID == "" {
		return "", ErrInvalidOwner
	}

	return filepath.Join(r.dir, url.PathEscape(ownerID)+suffix), nil
}
