package importer

import (
	"context"
	"time"

	"github.com/samber/lo"

	"speakwise/internal/domain"
)

// Store is the persistence the pipeline needs. Insert must ignore rows that
// conflict on (event_id, email): concurrent imports of one event race between
// the existing-email lookup and the write, so it reports the emails it actually inserted.
type Store interface {
	FindExistingEmails(ctx context.Context, eventID int64, emails []string) (map[string]struct{}, error)
	BulkInsert(ctx context.Context, rows []*domain.Attendance, batchSize int) ([]string, error)
	ListByEvent(ctx context.Context, eventID int64) ([]*domain.Attendance, error)
}

// Dedupe drops records whose email is already recorded for the event, using a
// single lookup. No lookup is made for an empty candidate list.
func Dedupe(ctx context.Context, store Store, eventID int64, records []Record) ([]Record, map[string]struct{}, error) {
	if len(records) == 0 {
		return nil, map[string]struct{}{}, nil
	}
	emails := lo.Map(records, func(r Record, _ int) string { return r.Email })
	existing, err := store.FindExistingEmails(ctx, eventID, emails)
	if err != nil {
		return nil, nil, newError(KindPersistence, ErrPersistence, err)
	}
	if existing == nil {
		existing = map[string]struct{}{}
	}
	toCreate := lo.Filter(records, func(r Record, _ int) bool {
		_, ok := existing[r.Email]
		return !ok
	})
	return toCreate, existing, nil
}

// Persist inserts records for the event in one transaction. It returns the
// event's full attendance afterwards and the records this call created; records
// a concurrent import wrote first are left out of created.
func Persist(ctx context.Context, store Store, eventID int64, records []Record, batchSize int, now time.Time) (all []*domain.Attendance, created []Record, err error) {
	created = []Record{}
	if len(records) > 0 {
		rows := lo.Map(records, func(r Record, _ int) *domain.Attendance {
			return domain.NewAttendance(eventID, r.Email, r.Name, now)
		})
		inserted, err := store.BulkInsert(ctx, rows, batchSize)
		if err != nil {
			return nil, nil, newError(KindPersistence, ErrPersistence, err)
		}
		insertedSet := lo.SliceToMap(inserted, func(e string) (string, struct{}) { return e, struct{}{} })
		created = lo.Filter(records, func(r Record, _ int) bool {
			_, ok := insertedSet[r.Email]
			return ok
		})
	}
	all, err = store.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, nil, newError(KindPersistence, ErrPersistence, err)
	}
	if all == nil {
		all = []*domain.Attendance{}
	}
	return all, created, nil
}
