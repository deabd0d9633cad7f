package integrations

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Format is a container format a chapter can be packaged into.
type Format string

const (
	FormatEPUB Format = "epub"
	FormatCBZ  Format = "cbz"
	FormatPDF  Format = "pdf"
)

var Formats = []Format{FormatEPUB, FormatCBZ, FormatPDF}

// ParseFormat accepts a format name case-insensitively.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Formats {
		if f == known {
			return f, nil
		}
	}
	return "", errors.Errorf("unsupported format: %q", s)
}

// Ext is the file extension of the format, without the dot.
func (f Format) Ext() string {
	return string(f)
}

// Metadata is the book-level information shared by every package.
type Metadata struct {
	Series   string
	Author   string
	Language string
}

// Job describes one chapter to package. Assets are local image paths in
// reading order; Sizes is optional and, when set, aligned with Assets.
type Job struct {
	Number int
	Title  string
	Assets []string
	Sizes  []Size
	Output string
}

// Packager assembles a chapter's images into a single container at
// Job.Output. Implementations write to a temporary path and rename on
// success.
type Packager interface {
	Package(ctx context.Context, job Job) error
	Format() Format
}

// PackageError reports a failed packaging step.
type PackageError struct {
	Format  Format
	Number  int
	Message string
	Err     error
}

func (e *PackageError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("failed to build %s for chapter %d: %s", e.Format, e.Number, e.Message)
	}
	return fmt.Sprintf("failed to build %s for chapter %d: %s: %v", e.Format, e.Number, e.Message, e.Err)
}

func (e *PackageError) Unwrap() error {
	return e.Err
}

func newPackageError(format Format, job Job, err error, message string) *PackageError {
	return &PackageError{Format: format, Number: job.Number, Message: message, Err: err}
}

// Packagers holds one Packager per format.
type Packagers map[Format]Packager

// NewPackagers returns the packagers for every supported format.
func NewPackagers(meta Metadata) Packagers {
	return Packagers{
		FormatEPUB: NewEPUBPackager(meta),
		FormatCBZ:  NewCBZPackager(meta),
		FormatPDF:  NewPDFPackager(),
	}
}

func (p Packagers) Get(format Format) (Packager, error) {
	packager, ok := p[format]
	if !ok {
		return nil, errors.Errorf("unsupported format: %q", format)
	}
	return packager, nil
}

func validateJob(format Format, job Job) error {
	if len(job.Assets) == 0 {
		return newPackageError(format, job, nil, "no pages to package")
	}
	if job.Output == "" {
		return newPackageError(format, job, nil, "no output path")
	}
	return nil
}

// chapterTitle is the display title of a chapter, e.g.
// "One Piece – Kapitel 1000: Strohhut Ruffy".
func chapterTitle(meta Metadata, job Job) string {
	title := fmt.Sprintf("Kapitel %d", job.Number)
	if meta.Series != "" {
		title = fmt.Sprintf("%s – %s", meta.Series, title)
	}
	if job.Title != "" {
		title = fmt.Sprintf("%s: %s", title, job.Title)
	}
	return title
}
