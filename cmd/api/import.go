package main

import (
	"encoding/json"
	"fmt"
	"mime"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"speakwise/internal/domain"
)

type importOutput struct {
	EventID          int64 `json:"event_id"`
	Attendance       int   `json:"attendance"`
	Created          int   `json:"created"`
	SkippedExisting  int   `json:"skipped_existing"`
	DuplicatesInFile int   `json:"duplicates_in_file"`
	BlankRows        int   `json:"blank_rows"`
}

func newImportCmd(a *app) *cobra.Command {
	var (
		eventID int64
		path    string
	)
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import an attendee list file into an event",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(path)
			if err != nil {
				return fmt.Errorf("open attendee list: %w", err)
			}
			defer f.Close()
			info, err := f.Stat()
			if err != nil {
				return fmt.Errorf("stat attendee list: %w", err)
			}

			d, err := a.buildDeps(cmd.Context())
			if err != nil {
				return err
			}
			defer d.Close()

			res, err := d.attendance.ImportAttendees(cmd.Context(), eventID, domain.AttendanceUpload{
				File:        f,
				Filename:    filepath.Base(path),
				ContentType: mime.TypeByExtension(filepath.Ext(path)),
				Size:        info.Size(),
			})
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(importOutput{
				EventID:          eventID,
				Attendance:       len(res.Attendance),
				Created:          res.Created,
				SkippedExisting:  res.SkippedExisting,
				DuplicatesInFile: res.DuplicatesInFile,
				BlankRows:        res.BlankRows,
			})
		},
	}
	cmd.Flags().Int64Var(&eventID, "event", 0, "Event ID (required)")
	cmd.Flags().StringVar(&path, "file", "", "Path to a .csv or .xlsx attendee list (required)")
	_ = cmd.MarkFlagRequired("event")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}
