package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"github.com/samber/lo"

	"speakwise/internal/domain"
)

// attendanceInsertColumns is the column list of bulk inserts; each row binds one parameter per column.
var attendanceInsertColumns = []string{
	"event_id", "email", "username", "checked_in_at", "is_verified", "is_given_feedback", "created_at",
}

const attendanceSelect = `
		SELECT id, event_id, email, username, checked_in_at, is_verified, is_given_feedback, created_at
		FROM attendance
`

type attendanceRepository struct {
	DB *sql.DB
}

func NewAttendanceRepository(db *sql.DB) domain.AttendanceRepository {
	return &attendanceRepository{
		DB: db,
	}
}

func (r *attendanceRepository) FindExistingEmails(ctx context.Context, eventID int64, emails []string) (map[string]struct{}, error) {
	existing := make(map[string]struct{})
	if len(emails) == 0 {
		return existing, nil
	}
	rows, err := r.DB.QueryContext(ctx,
		`SELECT email FROM attendance WHERE event_id = $1 AND email = ANY($2)`,
		eventID, pq.Array(emails))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return nil, err
		}
		existing[email] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return existing, nil
}

// maxInsertBatch is the most rows one INSERT can carry under PostgreSQL's
// 65535 bind-parameter limit.
var maxInsertBatch = 65535 / len(attendanceInsertColumns)

// BulkInsert writes all rows in one transaction, one multi-row INSERT per batch,
// and returns the emails actually inserted. Rows skipped by the (event_id, email)
// conflict are not returned. A failing batch rolls back every batch before it.
func (r *attendanceRepository) BulkInsert(ctx context.Context, rows []*domain.Attendance, batchSize int) (inserted []string, err error) {
	if len(rows) == 0 {
		return []string{}, nil
	}
	if batchSize <= 0 || batchSize > maxInsertBatch {
		batchSize = min(len(rows), maxInsertBatch)
	}

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	inserted = make([]string, 0, len(rows))
	for i, batch := range lo.Chunk(rows, batchSize) {
		query, args := insertAttendanceQuery(batch)
		emails, qErr := insertBatch(ctx, tx, query, args)
		if qErr != nil {
			var pqErr *pq.Error
			if errors.As(qErr, &pqErr) && pqErr.Code == "23503" {
				err = fmt.Errorf("insert attendance batch %d: event %d: %w", i, batch[0].EventID, domain.ErrNotFound)
				return nil, err
			}
			err = fmt.Errorf("insert attendance batch %d: %w", i, qErr)
			return nil, err
		}
		inserted = append(inserted, emails...)
	}
	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit attendance: %w", err)
	}
	return inserted, nil
}

func insertBatch(ctx context.Context, tx *sql.Tx, query string, args []any) ([]string, error) {
	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var emails []string
	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return nil, err
		}
		emails = append(emails, email)
	}
	return emails, rows.Err()
}

func insertAttendanceQuery(batch []*domain.Attendance) (string, []any) {
	var sb strings.Builder
	sb.WriteString("INSERT INTO attendance (")
	sb.WriteString(strings.Join(attendanceInsertColumns, ", "))
	sb.WriteString(") VALUES ")

	n := len(attendanceInsertColumns)
	args := make([]any, 0, len(batch)*n)
	for i, a := range batch {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteByte('(')
		for j := 0; j < n; j++ {
			if j > 0 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "$%d", i*n+j+1)
		}
		sb.WriteByte(')')
		args = append(args, a.EventID, a.Email, a.Username, a.CheckedInAt, a.IsVerified, a.IsGivenFeedback, a.CreatedAt)
	}
	sb.WriteString(" ON CONFLICT (event_id, email) DO NOTHING RETURNING email")
	return sb.String(), args
}

func (r *attendanceRepository) ListByEvent(ctx context.Context, eventID int64) ([]*domain.Attendance, error) {
	return r.list(ctx, attendanceSelect+`WHERE event_id = $1 ORDER BY id`, eventID)
}

func (r *attendanceRepository) ListByEventPage(ctx context.Context, eventID int64, page domain.PaginationParams) ([]*domain.Attendance, int, error) {
	var total int
	if err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM attendance WHERE event_id = $1`, eventID).Scan(&total); err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []*domain.Attendance{}, 0, nil
	}
	limit := sql.NullInt64{Int64: int64(page.Limit()), Valid: page.Limit() > 0}
	items, err := r.list(ctx, attendanceSelect+`WHERE event_id = $1 ORDER BY id LIMIT $2 OFFSET $3`,
		eventID, limit, page.Offset())
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *attendanceRepository) GetByID(ctx context.Context, id int64) (*domain.Attendance, error) {
	a := &domain.Attendance{}
	err := r.DB.QueryRowContext(ctx, attendanceSelect+`WHERE id = $1`, id).Scan(
		&a.ID, &a.EventID, &a.Email, &a.Username, &a.CheckedInAt, &a.IsVerified, &a.IsGivenFeedback, &a.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return a, nil
}

func (r *attendanceRepository) ListByEmail(ctx context.Context, email string) ([]*domain.Attendance, error) {
	return r.list(ctx, attendanceSelect+`WHERE email = $1 ORDER BY id`, email)
}

func (r *attendanceRepository) MarkVerified(ctx context.Context, email string) error {
	_, err := r.DB.ExecContext(ctx, `UPDATE attendance SET is_verified = TRUE WHERE email = $1`, email)
	return err
}

func (r *attendanceRepository) MarkFeedbackGiven(ctx context.Context, email string) (int64, error) {
	result, err := r.DB.ExecContext(ctx,
		`UPDATE attendance SET is_given_feedback = TRUE WHERE email = $1 AND is_given_feedback = FALSE`, email)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *attendanceRepository) list(ctx context.Context, query string, args ...any) ([]*domain.Attendance, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]*domain.Attendance, 0)
	for rows.Next() {
		a := &domain.Attendance{}
		if err := rows.Scan(&a.ID, &a.EventID, &a.Email, &a.Username, &a.CheckedInAt, &a.IsVerified, &a.IsGivenFeedback, &a.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
