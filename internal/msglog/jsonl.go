package msglog

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/chrysochos/society/pkg/models"
)

// Stream file names inside the log directory.
const (
	messagesFile   = "messages.jsonl"
	deliveriesFile = "deliveries.jsonl"
	registryFile   = "registry.jsonl"
)

// FileStore persists the three append-only streams as one JSON record per
// line. A single mutex serializes appends; reads re-scan the files, which
// keeps the writer path free of any in-memory index.
type FileStore struct {
	dir string
	mu  sync.Mutex

	messages   *os.File
	deliveries *os.File
	registry   *os.File
}

// Open opens (creating if needed) the JSONL streams under dir.
func Open(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	s := &FileStore{dir: dir}
	for _, f := range []struct {
		name string
		dst  **os.File
	}{
		{messagesFile, &s.messages},
		{deliveriesFile, &s.deliveries},
		{registryFile, &s.registry},
	} {
		file, err := os.OpenFile(filepath.Join(dir, f.name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("open %s: %w", f.name, err)
		}
		*f.dst = file
	}
	return s, nil
}

// Dir returns the directory holding the streams.
func (s *FileStore) Dir() string {
	return s.dir
}

// AppendMessage appends a message record to the messages stream.
func (s *FileStore) AppendMessage(msg models.Message) error {
	return s.appendLine(s.messages, msg)
}

// AppendDelivery appends a delivery record to the deliveries stream.
func (s *FileStore) AppendDelivery(rec models.DeliveryRecord) error {
	return s.appendLine(s.deliveries, rec)
}

// AppendRegistry appends a registration/heartbeat record to the registry stream.
func (s *FileStore) AppendRegistry(rec models.RegistryRecord) error {
	return s.appendLine(s.registry, rec)
}

// appendLine marshals v and writes it as one line under the store mutex.
func (s *FileStore) appendLine(f *os.File, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal log record: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("append log record: %w", err)
	}
	return f.Sync()
}

// Messages returns every recorded message in append order.
func (s *FileStore) Messages() ([]models.Message, error) {
	var msgs []models.Message
	err := s.scan(messagesFile, func(line []byte) error {
		var msg models.Message
		if err := json.Unmarshal(line, &msg); err != nil {
			return err
		}
		msgs = append(msgs, msg)
		return nil
	})
	return msgs, err
}

// Deliveries returns every delivery record in append order.
func (s *FileStore) Deliveries() ([]models.DeliveryRecord, error) {
	var recs []models.DeliveryRecord
	err := s.scan(deliveriesFile, func(line []byte) error {
		var rec models.DeliveryRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			return err
		}
		recs = append(recs, rec)
		return nil
	})
	return recs, err
}

// UndeliveredFor returns messages addressed to agentID with no successful
// delivery record, in append order. This is the offline catch-up query.
func (s *FileStore) UndeliveredFor(agentID string) ([]models.Message, error) {
	msgs, err := s.Messages()
	if err != nil {
		return nil, err
	}
	recs, err := s.Deliveries()
	if err != nil {
		return nil, err
	}
	return undelivered(agentID, msgs, recs), nil
}

// Agents returns the latest registry record per agent.
func (s *FileStore) Agents() ([]models.RegistryRecord, error) {
	var recs []models.RegistryRecord
	err := s.scan(registryFile, func(line []byte) error {
		var rec models.RegistryRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			return err
		}
		recs = append(recs, rec)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return latestRegistry(recs), nil
}

// scan reads a stream line by line, calling fn on each non-empty line.
func (s *FileStore) scan(name string, fn func(line []byte) error) error {
	f, err := os.Open(filepath.Join(s.dir, name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("open %s: %w", name, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		if err := fn(line); err != nil {
			return fmt.Errorf("decode %s record: %w", name, err)
		}
	}
	return scanner.Err()
}

// Close closes the underlying stream files.
func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var firstErr error
	for _, f := range []*os.File{s.messages, s.deliveries, s.registry} {
		if f == nil {
			continue
		}
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
