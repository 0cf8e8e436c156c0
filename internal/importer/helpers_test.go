package importer

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"speakwise/internal/domain"
)

// memStore is an in-memory Store with conflict-ignore inserts on (event, email).
type memStore struct {
	mu         sync.Mutex
	rows       []*domain.Attendance
	nextID     int64
	findCalls  int
	insertErr  error
	findErr    error
	batchSizes []int
}

func newMemStore(seed ...*domain.Attendance) *memStore {
	s := &memStore{}
	for _, r := range seed {
		s.nextID++
		r.ID = s.nextID
		s.rows = append(s.rows, r)
	}
	return s
}

func (s *memStore) FindExistingEmails(ctx context.Context, eventID int64, emails []string) (map[string]struct{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.findCalls++
	if s.findErr != nil {
		return nil, s.findErr
	}
	want := make(map[string]struct{}, len(emails))
	for _, e := range emails {
		want[e] = struct{}{}
	}
	out := map[string]struct{}{}
	for _, r := range s.rows {
		if _, ok := want[r.Email]; ok && r.EventID == eventID {
			out[r.Email] = struct{}{}
		}
	}
	return out, nil
}

func (s *memStore) BulkInsert(ctx context.Context, rows []*domain.Attendance, batchSize int) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batchSizes = append(s.batchSizes, batchSize)
	if s.insertErr != nil {
		return nil, s.insertErr
	}
	inserted := []string{}
	for _, r := range rows {
		if s.has(r.EventID, r.Email) {
			continue
		}
		s.nextID++
		r.ID = s.nextID
		s.rows = append(s.rows, r)
		inserted = append(inserted, r.Email)
	}
	return inserted, nil
}

func (s *memStore) has(eventID int64, email string) bool {
	for _, r := range s.rows {
		if r.EventID == eventID && r.Email == email {
			return true
		}
	}
	return false
}

func (s *memStore) ListByEvent(ctx context.Context, eventID int64) ([]*domain.Attendance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Attendance
	for _, r := range s.rows {
		if r.EventID == eventID {
			out = append(out, r)
		}
	}
	return out, nil
}

func emailsOf(rows []*domain.Attendance) []string {
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.Email)
	}
	sort.Strings(out)
	return out
}

// xlsxBytes builds a one-sheet workbook from rows.
func xlsxBytes(t *testing.T, rows [][]any) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &row))
	}
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	return buf.Bytes()
}

// writeStaged writes content to dir and returns it as a StagedFile without the intake checks.
func writeStaged(t *testing.T, name string, content []byte) *StagedFile {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, content, 0o600))
	ext := filepath.Ext(name)
	return &StagedFile{
		Path:   path,
		Name:   name,
		Ext:    ext,
		Format: DefaultOptions().AllowedExtensions[ext],
		Size:   int64(len(content)),
	}
}

func dirEntries(t *testing.T, dir string) []os.DirEntry {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	return entries
}
