package integrations

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-shiori/go-epub"

	"github.com/kerbaras/onepiece-offline/pkg/storage"
)

const pageCSS = `body { margin: 0; padding: 0; text-align: center; }
div.page { margin: 0; padding: 0; page-break-after: always; }
div.page img { max-width: 100%; max-height: 100vh; height: auto; }
`

// EPUBPackager builds a fixed one-image-per-section EPUB.
type EPUBPackager struct {
	meta Metadata
}

func NewEPUBPackager(meta Metadata) *EPUBPackager {
	return &EPUBPackager{meta: meta}
}

func (p *EPUBPackager) Format() Format {
	return FormatEPUB
}

// Package writes job.Assets as sections page_001.xhtml, page_002.xhtml, ...
// The table of contents and navigation document are generated from the
// sections.
func (p *EPUBPackager) Package(ctx context.Context, job Job) error {
	if err := validateJob(FormatEPUB, job); err != nil {
		return err
	}

	title := chapterTitle(p.meta, job)
	e, err := epub.NewEpub(title)
	if err != nil {
		return newPackageError(FormatEPUB, job, err, "failed to create EPUB")
	}
	if p.meta.Author != "" {
		e.SetAuthor(p.meta.Author)
	}
	if p.meta.Language != "" {
		e.SetLang(p.meta.Language)
	}
	e.SetDescription(fmt.Sprintf("%s (%d Seiten)", title, len(job.Assets)))

	// go-epub reads its sources on Write, so the stylesheet has to outlive
	// the loop below.
	cssFile, err := os.CreateTemp("", "opoffline-*.css")
	if err != nil {
		return newPackageError(FormatEPUB, job, err, "failed to stage stylesheet")
	}
	defer os.Remove(cssFile.Name())
	if _, err := cssFile.WriteString(pageCSS); err != nil {
		cssFile.Close()
		return newPackageError(FormatEPUB, job, err, "failed to stage stylesheet")
	}
	cssFile.Close()

	cssPath, err := e.AddCSS(cssFile.Name(), "pages.css")
	if err != nil {
		return newPackageError(FormatEPUB, job, err, "failed to add stylesheet")
	}

	for i, asset := range job.Assets {
		if err := ctx.Err(); err != nil {
			return newPackageError(FormatEPUB, job, err, "cancelled")
		}
		idx := i + 1
		ext := strings.ToLower(filepath.Ext(asset))
		imgPath, err := e.AddImage(asset, fmt.Sprintf("image_%03d%s", idx, ext))
		if err != nil {
			return newPackageError(FormatEPUB, job, err, fmt.Sprintf("failed to add image %s", filepath.Base(asset)))
		}

		body := pageBody(imgPath, idx, sizeOf(job, i))
		sectionTitle := fmt.Sprintf("Seite %d", idx)
		if _, err := e.AddSection(body, sectionTitle, fmt.Sprintf("page_%03d.xhtml", idx), cssPath); err != nil {
			return newPackageError(FormatEPUB, job, err, fmt.Sprintf("failed to add section %d", idx))
		}
	}

	err = storage.CreateAtomic(job.Output, func(tmp string) error {
		return e.Write(tmp)
	})
	if err != nil {
		return newPackageError(FormatEPUB, job, err, "failed to write EPUB")
	}
	return nil
}

func pageBody(imgPath string, idx int, size Size) string {
	dims := ""
	if size.Valid() {
		dims = fmt.Sprintf(` width="%d" height="%d"`, size.Width, size.Height)
	}
	return fmt.Sprintf(`<div class="page"><img src="%s" alt="Seite %d"%s /></div>`, imgPath, idx, dims)
}
