package importer

import (
	"errors"
	"io"
	"io/fs"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// StagedFile is an upload copied into a private temporary file.
// It must be released with Remove once the import is over.
type StagedFile struct {
	Path   string
	Name   string
	Ext    string
	Format Format
	Size   int64
	// MIME is the media type sniffed from the staged bytes.
	MIME string
}

// Remove deletes the temporary file. It is safe to call more than once.
func (f *StagedFile) Remove() error {
	if f == nil || f.Path == "" {
		return nil
	}
	if err := os.Remove(f.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// StageUpload validates the declared upload metadata and copies r into a temporary file,
// counting bytes as they arrive. declaredSize < 0 means the size is unknown.
// On error nothing is left on disk.
func StageUpload(r io.Reader, name, contentType string, declaredSize int64, opts Options) (staged *StagedFile, err error) {
	opts = opts.withDefaults()

	if r == nil || strings.TrimSpace(name) == "" {
		return nil, newError(KindInput, ErrNoFileProvided, nil)
	}

	ext := strings.ToLower(filepath.Ext(name))
	format, ok := opts.AllowedExtensions[ext]
	if !ok {
		e := newError(KindFormat, ErrUnsupportedFormat, nil)
		e.Value = name
		return nil, e
	}

	if ct := normalizeContentType(contentType); ct != "" {
		if _, ok := opts.AllowedContentTypes[ct]; !ok {
			e := newError(KindFormat, ErrUnsupportedContentType, nil)
			e.Value = contentType
			return nil, e
		}
	}

	if declaredSize > opts.MaxUploadBytes {
		return nil, newError(KindSize, ErrFileTooLarge, nil)
	}

	tmp, err := os.CreateTemp(opts.TempDir, "attendance-*"+ext)
	if err != nil {
		return nil, newError(KindIO, ErrIOFailure, err)
	}
	path := tmp.Name()
	closed := false
	defer func() {
		if err == nil {
			return
		}
		if !closed {
			_ = tmp.Close()
		}
		_ = os.Remove(path)
	}()

	// Reading one byte past the limit is enough to know the stream is too large.
	written, err := io.Copy(tmp, io.LimitReader(r, opts.MaxUploadBytes+1))
	if err != nil {
		return nil, newError(KindIO, ErrIOFailure, err)
	}
	if written > opts.MaxUploadBytes {
		err = newError(KindSize, ErrFileTooLarge, nil)
		return nil, err
	}
	closed = true
	if err = tmp.Close(); err != nil {
		return nil, newError(KindIO, ErrIOFailure, err)
	}

	staged = &StagedFile{
		Path:   path,
		Name:   name,
		Ext:    ext,
		Format: format,
		Size:   written,
	}
	if written == 0 {
		return staged, nil
	}

	mt, err := mimetype.DetectFile(path)
	if err != nil {
		return nil, newError(KindIO, ErrIOFailure, err)
	}
	staged.MIME = mt.String()
	if !format.accepts(mt) {
		e := newError(KindFormat, ErrUnsupportedContentType, nil)
		e.Value = mt.String()
		err = e
		return nil, err
	}
	return staged, nil
}

func normalizeContentType(ct string) string {
	ct = strings.TrimSpace(ct)
	if ct == "" {
		return ""
	}
	if mediaType, _, err := mime.ParseMediaType(ct); err == nil {
		return mediaType
	}
	return strings.ToLower(ct)
}

// accepts reports whether the sniffed type belongs to the family expected for the format.
func (f Format) accepts(mt *mimetype.MIME) bool {
	var family string
	switch f {
	case FormatCSV:
		family = "text/plain"
	case FormatXLSX:
		family = "application/zip"
	default:
		return false
	}
	for m := mt; m != nil; m = m.Parent() {
		if m.Is(family) {
			return true
		}
	}
	return false
}
