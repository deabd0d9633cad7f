package integrations

import (
	"context"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"

	"github.com/kerbaras/onepiece-offline/pkg/storage"
)

// PDFPackager places one image per page, each page sized to its image.
type PDFPackager struct{}

func NewPDFPackager() *PDFPackager {
	return &PDFPackager{}
}

func (p *PDFPackager) Format() Format {
	return FormatPDF
}

func (p *PDFPackager) Package(ctx context.Context, job Job) error {
	if err := validateJob(FormatPDF, job); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return newPackageError(FormatPDF, job, err, "cancelled")
	}

	// ImportImagesFile appends to an existing file; CreateAtomic guarantees
	// tmp does not exist yet.
	err := storage.CreateAtomic(job.Output, func(tmp string) error {
		return api.ImportImagesFile(job.Assets, tmp, pdfcpu.DefaultImportConfig(), nil)
	})
	if err != nil {
		return newPackageError(FormatPDF, job, err, "failed to write PDF")
	}
	return nil
}
