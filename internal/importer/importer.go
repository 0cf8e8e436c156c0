package importer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"speakwise/internal/domain"
)

// Stage is a step of the import pipeline. Stages run strictly in order;
// any of them may end the import in StageFailed.
type Stage int

const (
	StageIntake Stage = iota + 1
	StageParse
	StageResolveHeaders
	StageNormalize
	StageDedup
	StagePersist
	StageDone
	StageFailed
)

var stageNames = map[Stage]string{
	StageIntake:         "intake",
	StageParse:          "parse",
	StageResolveHeaders: "resolve_headers",
	StageNormalize:      "normalize",
	StageDedup:          "dedup",
	StagePersist:        "persist",
	StageDone:           "done",
	StageFailed:         "failed",
}

func (s Stage) String() string {
	if n, ok := stageNames[s]; ok {
		return n
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

// Result is the outcome of a successful import.
type Result struct {
	ImportID string
	// Attendance is every row of the event after the import, old and new.
	Attendance       []*domain.Attendance
	Created          []Record
	SkippedExisting  int
	DuplicatesInFile int
	BlankRows        int
}

// Importer turns an uploaded attendee list into attendance rows of one event.
type Importer struct {
	store  Store
	emails EmailValidator
	opts   Options
	logger *slog.Logger
	now    func() time.Time
}

// New returns an Importer writing to store. Zero fields of opts take their defaults.
func New(store Store, emails EmailValidator, opts Options, logger *slog.Logger) *Importer {
	return &Importer{
		store:  store,
		emails: emails,
		opts:   opts.withDefaults(),
		logger: logger,
		now:    time.Now,
	}
}

// Import runs the whole pipeline synchronously. The staged temporary file is
// removed on every return path. Failures are *Error values; nothing is written
// unless every row of the file is valid.
func (im *Importer) Import(ctx context.Context, upload domain.AttendanceUpload, eventID int64) (res *Result, err error) {
	importID := uuid.NewString()
	logger := im.logger.With("import_id", importID, "event_id", eventID)
	start := time.Now()

	stage := StageIntake
	enter := func(s Stage) {
		stage = s
		logger.DebugContext(ctx, "import stage", "stage", s.String())
	}
	defer func() {
		if err == nil {
			return
		}
		var ie *Error
		if errors.As(err, &ie) && ie.Stage == 0 {
			ie.Stage = stage
		}
		attrs := []any{"stage", stage.String(), "kind", KindOf(err).String(), "err", err}
		if KindOf(err).IsClientError() {
			logger.WarnContext(ctx, "import rejected", attrs...)
		} else {
			logger.ErrorContext(ctx, "import failed", attrs...)
		}
		logger.DebugContext(ctx, "import stage", "stage", StageFailed.String())
	}()

	enter(StageIntake)
	staged, err := StageUpload(upload.File, upload.Filename, upload.ContentType, upload.Size, im.opts)
	if err != nil {
		return nil, err
	}
	defer func() {
		if rmErr := staged.Remove(); rmErr != nil {
			logger.ErrorContext(ctx, "remove staged upload", "path", staged.Path, "err", rmErr)
		}
	}()

	processCtx, cancel := ctx, context.CancelFunc(func() {})
	if im.opts.ProcessTimeout > 0 {
		processCtx, cancel = context.WithTimeout(ctx, im.opts.ProcessTimeout)
	}
	defer cancel()

	enter(StageParse)
	table, err := Parse(processCtx, staged, im.opts)
	if err != nil {
		return nil, err
	}

	enter(StageResolveHeaders)
	mapping, err := ResolveColumns(table.Headers)
	if err != nil {
		return nil, err
	}

	enter(StageNormalize)
	records, stats, err := normalizeRecords(processCtx, table, mapping, im.emails)
	if err != nil {
		return nil, err
	}
	cancel()

	enter(StageDedup)
	toCreate, _, err := Dedupe(ctx, im.store, eventID, records)
	if err != nil {
		return nil, err
	}

	enter(StagePersist)
	attendance, created, err := Persist(ctx, im.store, eventID, toCreate, im.opts.BatchSize, im.now())
	if err != nil {
		return nil, err
	}

	enter(StageDone)
	res = &Result{
		ImportID:         importID,
		Attendance:       attendance,
		Created:          created,
		SkippedExisting:  len(records) - len(created),
		DuplicatesInFile: stats.duplicates,
		BlankRows:        stats.blank,
	}
	logger.InfoContext(ctx, "attendance imported",
		"file", staged.Name,
		"format", staged.Format.String(),
		"bytes", staged.Size,
		"email_column", mapping.Email,
		"name_column", mapping.Name,
		"created", len(res.Created),
		"skipped_existing", res.SkippedExisting,
		"duplicates_in_file", res.DuplicatesInFile,
		"blank_rows", res.BlankRows,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return res, nil
}
