package integrations

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/kerbaras/onepiece-offline/pkg/storage"
)

const comicInfoName = "ComicInfo.xml"

type comicInfo struct {
	XMLName     xml.Name `xml:"ComicInfo"`
	Title       string   `xml:"Title,omitempty"`
	Series      string   `xml:"Series,omitempty"`
	Number      string   `xml:"Number"`
	Writer      string   `xml:"Writer,omitempty"`
	PageCount   int      `xml:"PageCount"`
	LanguageISO string   `xml:"LanguageISO,omitempty"`
	Manga       string   `xml:"Manga"`
}

// CBZPackager writes a comic book archive with pages renamed 001.ext,
// 002.ext, ... and a ComicInfo.xml.
type CBZPackager struct {
	meta Metadata
}

func NewCBZPackager(meta Metadata) *CBZPackager {
	return &CBZPackager{meta: meta}
}

func (p *CBZPackager) Format() Format {
	return FormatCBZ
}

func (p *CBZPackager) Package(ctx context.Context, job Job) error {
	if err := validateJob(FormatCBZ, job); err != nil {
		return err
	}

	err := storage.CreateAtomic(job.Output, func(tmp string) error {
		f, err := os.Create(tmp)
		if err != nil {
			return err
		}
		zw := zip.NewWriter(f)
		if err := p.writeArchive(ctx, zw, job); err != nil {
			zw.Close()
			f.Close()
			return err
		}
		if err := zw.Close(); err != nil {
			f.Close()
			return err
		}
		return f.Close()
	})
	if err != nil {
		return newPackageError(FormatCBZ, job, err, "failed to write CBZ")
	}
	return nil
}

func (p *CBZPackager) writeArchive(ctx context.Context, zw *zip.Writer, job Job) error {
	info, err := xml.MarshalIndent(comicInfo{
		Title:       job.Title,
		Series:      p.meta.Series,
		Number:      strconv.Itoa(job.Number),
		Writer:      p.meta.Author,
		PageCount:   len(job.Assets),
		LanguageISO: p.meta.Language,
		Manga:       "YesAndRightToLeft",
	}, "", "  ")
	if err != nil {
		return err
	}
	w, err := zw.Create(comicInfoName)
	if err != nil {
		return err
	}
	if _, err := w.Write(append([]byte(xml.Header), info...)); err != nil {
		return err
	}

	for i, asset := range job.Assets {
		if err := ctx.Err(); err != nil {
			return err
		}
		name := fmt.Sprintf("%03d%s", i+1, strings.ToLower(filepath.Ext(asset)))
		if err := addFile(zw, name, asset); err != nil {
			return err
		}
	}
	return nil
}

func addFile(zw *zip.Writer, name, path string) error {
	src, err := os.Open(path)
	if err != nil {
		return err
	}
	defer src.Close()

	// Images are already compressed.
	w, err := zw.CreateHeader(&zip.FileHeader{
		Name:     name,
		Method:   zip.Store,
		Modified: time.Now(),
	})
	if err != nil {
		return err
	}
	_, err = io.Copy(w, src)
	return err
}
