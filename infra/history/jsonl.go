package history

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/kilianp07/essim/core/model"
)

// JSONLStore appends one JSON snapshot per line to a file.
type JSONLStore struct {
	path string
	mu   sync.Mutex
}

// NewJSONLStore creates the file if needed.
func NewJSONLStore(path string) (*JSONLStore, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, err
	}
	if cerr := f.Close(); cerr != nil {
		return nil, cerr
	}
	return &JSONLStore{path: path}, nil
}

// Append writes snaps at the end of the file.
func (s *JSONLStore) Append(_ context.Context, snaps []model.BatterySnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	for _, sn := range snaps {
		if err := enc.Encode(sn); err != nil {
			_ = f.Close()
			return err
		}
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// RecordSnapshots implements metrics.TelemetrySink.
func (s *JSONLStore) RecordSnapshots(snaps []model.BatterySnapshot) error {
	return s.Append(context.Background(), snaps)
}

// Query scans the file and returns matching snapshots.
func (s *JSONLStore) Query(ctx context.Context, q Query) ([]model.BatterySnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, err := os.Open(s.path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	var res []model.BatterySnapshot
	scanner := bufio.NewScanner(f)
	line := 0
	for scanner.Scan() {
		line++
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var sn model.BatterySnapshot
		if err := json.Unmarshal(scanner.Bytes(), &sn); err != nil {
			return nil, fmt.Errorf("%s:%d: %w", s.path, line, err)
		}
		if q.match(sn) {
			res = append(res, sn)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

// Close is a no-op; the file is reopened on every append.
func (s *JSONLStore) Close() error { return nil }
