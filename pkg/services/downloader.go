package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"golang.org/x/sync/singleflight"

	"github.com/kerbaras/onepiece-offline/pkg/data"
	"github.com/kerbaras/onepiece-offline/pkg/integrations"
	"github.com/kerbaras/onepiece-offline/pkg/sources"
	"github.com/kerbaras/onepiece-offline/pkg/storage"
)

const (
	StatusDownloading = "downloading"
	StatusPackaging   = "packaging"
	StatusComplete    = "complete"
	StatusError       = "error"
)

// DownloadProgress represents the progress of a download operation
type DownloadProgress struct {
	ChapterNumber int
	CurrentPage   int
	TotalPages    int
	Status        string
	Error         error
}

// Recorder is the optional relational index of downloads.
type Recorder interface {
	RecordDownload(ctx context.Context, chapter *data.DownloadedChapter, entry *data.ChapterEntry) error
	DeleteChapter(ctx context.Context, number int) error
}

// Catalog provides the cached catalog entry of a chapter, if known.
type Catalog interface {
	Lookup(number int) (data.ChapterEntry, bool)
}

// DefaultDownloadTimeout bounds a shared download unless overridden.
const DefaultDownloadTimeout = 10 * time.Minute

type DownloaderOption func(*Downloader)

// WithFormat sets the primary package format.
func WithFormat(format integrations.Format) DownloaderOption {
	return func(d *Downloader) { d.format = format }
}

// WithRecorder indexes every completed download.
func WithRecorder(recorder Recorder) DownloaderOption {
	return func(d *Downloader) { d.recorder = recorder }
}

// WithCatalog supplies catalog entries for missing titles and the index.
func WithCatalog(catalog Catalog) DownloaderOption {
	return func(d *Downloader) { d.catalog = catalog }
}

// WithPageDelay spaces out image requests to the remote host.
func WithPageDelay(delay time.Duration) DownloaderOption {
	return func(d *Downloader) { d.pageDelay = delay }
}

// WithDownloadTimeout bounds a shared download. The work runs detached from
// the callers that wait for it, so this is its only deadline.
func WithDownloadTimeout(timeout time.Duration) DownloaderOption {
	return func(d *Downloader) { d.timeout = timeout }
}

// WithDownloaderLogger sets the logger used for download events.
func WithDownloaderLogger(log logger.Logger) DownloaderOption {
	return func(d *Downloader) { d.log = log }
}

// Downloader is the acquisition pipeline: resolve, fetch, order, package.
// Calls for the same chapter number are collapsed into one download that
// every caller shares. A caller that gives up stops waiting without
// cancelling the download for the others.
type Downloader struct {
	resolver  sources.Resolver
	store     *storage.Store
	packagers integrations.Packagers
	format    integrations.Format
	recorder  Recorder
	catalog   Catalog
	pageDelay time.Duration
	timeout   time.Duration
	log       logger.Logger
	now       func() time.Time

	group        singleflight.Group
	progressChan chan DownloadProgress
}

// NewDownloader creates a Downloader packaging into EPUB unless WithFormat
// says otherwise.
func NewDownloader(resolver sources.Resolver, store *storage.Store, packagers integrations.Packagers, opts ...DownloaderOption) *Downloader {
	d := &Downloader{
		resolver:     resolver,
		store:        store,
		packagers:    packagers,
		format:       integrations.FormatEPUB,
		timeout:      DefaultDownloadTimeout,
		log:          logger.New(),
		now:          time.Now,
		progressChan: make(chan DownloadProgress, 100),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// GetProgressChannel returns the channel for receiving download progress updates
func (d *Downloader) GetProgressChannel() <-chan DownloadProgress {
	return d.progressChan
}

// Store returns the chapter store downloads are written to.
func (d *Downloader) Store() *storage.Store {
	return d.store
}

// DefaultFormat is the primary package format.
func (d *Downloader) DefaultFormat() integrations.Format {
	return d.format
}

// DownloadChapter returns the completed download of a chapter, acquiring it
// first if needed. An existing download is returned unchanged.
func (d *Downloader) DownloadChapter(ctx context.Context, number int) (*data.DownloadedChapter, error) {
	if chapter, ok := d.existing(number); ok {
		return chapter, nil
	}
	v, err := d.shared(ctx, strconv.Itoa(number), number, func(ctx context.Context) (interface{}, error) {
		return d.download(ctx, number, false)
	})
	if err != nil {
		return nil, err
	}
	return v.(*data.DownloadedChapter), nil
}

// Redownload discards whatever is stored for a chapter and acquires it again.
func (d *Downloader) Redownload(ctx context.Context, number int) (*data.DownloadedChapter, error) {
	v, err := d.shared(ctx, "redownload/"+strconv.Itoa(number), number, func(ctx context.Context) (interface{}, error) {
		return d.download(ctx, number, true)
	})
	if err != nil {
		return nil, err
	}
	return v.(*data.DownloadedChapter), nil
}

// shared runs fn once per key for all concurrent callers. fn gets a context
// that keeps the values of the first caller's ctx but not its cancellation,
// bounded by the download timeout. Each caller waits only as long as its own
// ctx allows.
func (d *Downloader) shared(ctx context.Context, key string, number int, fn func(context.Context) (interface{}, error)) (interface{}, error) {
	ch := d.group.DoChan(key, func() (interface{}, error) {
		work := context.WithoutCancel(ctx)
		if d.timeout > 0 {
			var cancel context.CancelFunc
			work, cancel = context.WithTimeout(work, d.timeout)
			defer cancel()
		}
		return fn(work)
	})
	select {
	case <-ctx.Done():
		return nil, data.Transient(ctx.Err(), "chapter %d", number)
	case res := <-ch:
		return res.Val, res.Err
	}
}

// existing returns the manifest of a chapter whose primary package is on
// disk.
func (d *Downloader) existing(number int) (*data.DownloadedChapter, bool) {
	chapter, err := d.store.LoadManifest(number)
	if err != nil {
		return nil, false
	}
	if _, err := os.Stat(chapter.PackagePath); err != nil {
		return nil, false
	}
	return chapter, true
}

func (d *Downloader) download(ctx context.Context, number int, force bool) (*data.DownloadedChapter, error) {
	log := d.log.Data(logger.Data{"chapter": number})

	chapter, err := d.acquire(ctx, log, number, force)
	if err != nil {
		log.Err(err).Warn("chapter download failed")
		d.sendProgress(DownloadProgress{ChapterNumber: number, Status: StatusError, Error: err})
		return nil, err
	}
	d.sendProgress(DownloadProgress{
		ChapterNumber: number,
		CurrentPage:   len(chapter.Pages),
		TotalPages:    len(chapter.Pages),
		Status:        StatusComplete,
	})
	return chapter, nil
}

func (d *Downloader) acquire(ctx context.Context, log logger.Logger, number int, force bool) (*data.DownloadedChapter, error) {
	d.sendProgress(DownloadProgress{ChapterNumber: number, Status: StatusDownloading})

	resolved, err := d.resolver.ResolvePages(ctx, number)
	if err != nil {
		return nil, err
	}

	unlock, err := d.store.Lock(ctx, number)
	if err != nil {
		return nil, err
	}
	defer unlock()

	// Another process may have finished while we waited for the lock.
	if !force {
		if chapter, ok := d.existing(number); ok {
			return chapter, nil
		}
	} else if err := d.store.Reset(number); err != nil {
		return nil, err
	}
	if err := d.store.EnsureDirs(number); err != nil {
		return nil, err
	}

	paths, sizes, err := d.fetchPages(ctx, log, resolved)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, errors.Wrapf(data.ErrParse, "chapter %d has no usable pages", number)
	}

	storage.SortByFilename(paths)
	ordered := make([]integrations.Size, len(paths))
	for i, p := range paths {
		ordered[i] = sizes[p]
	}

	title := resolved.Title
	entry, hasEntry := d.lookup(number)
	if title == "" && hasEntry {
		title = entry.Title
	}

	d.sendProgress(DownloadProgress{ChapterNumber: number, CurrentPage: len(paths), TotalPages: len(paths), Status: StatusPackaging})
	output, err := d.pack(ctx, d.format, integrations.Job{
		Number: number,
		Title:  title,
		Assets: paths,
		Sizes:  ordered,
	})
	if err != nil {
		return nil, err
	}

	chapter := &data.DownloadedChapter{
		Number:       number,
		Title:        title,
		Pages:        paths,
		PackagePath:  output,
		DownloadedAt: d.now().UTC(),
	}
	if err := d.store.SaveManifest(chapter); err != nil {
		return nil, err
	}

	if d.recorder != nil {
		var indexed *data.ChapterEntry
		if hasEntry {
			indexed = &entry
		}
		if err := d.recorder.RecordDownload(ctx, chapter, indexed); err != nil {
			log.Err(err).Warn("failed to index chapter")
		}
	}

	log.Info("chapter downloaded", logger.Data{"pages": len(paths), "package": output})
	return chapter, nil
}

func (d *Downloader) fetchPages(ctx context.Context, log logger.Logger, resolved *data.ChapterData) ([]string, map[string]integrations.Size, error) {
	paths := make([]string, 0, len(resolved.Pages))
	sizes := make(map[string]integrations.Size, len(resolved.Pages))
	imagesDir := d.store.ImagesDir(resolved.Number)

	for i, page := range resolved.Pages {
		if page.URL == "" {
			log.Warn("skipping page without url", logger.Data{"page": i + 1})
			continue
		}
		name := data.Basename(page.URL)
		if name == "" || name == "." || name == ".." || name == "/" {
			log.Warn("skipping page without filename", logger.Data{"page": i + 1, "url": page.URL})
			continue
		}
		dest := filepath.Join(imagesDir, name)
		if _, dup := sizes[dest]; dup {
			log.Warn("skipping page with duplicate filename", logger.Data{"page": i + 1, "file": filepath.Base(dest)})
			continue
		}

		d.sendProgress(DownloadProgress{
			ChapterNumber: resolved.Number,
			CurrentPage:   i + 1,
			TotalPages:    len(resolved.Pages),
			Status:        StatusDownloading,
		})
		if err := d.store.FetchAsset(ctx, page.URL, dest); err != nil {
			return nil, nil, errors.WithMessagef(err, "page %d of chapter %d", i+1, resolved.Number)
		}
		paths = append(paths, dest)
		sizes[dest] = integrations.Size{Width: page.Width, Height: page.Height}

		if d.pageDelay > 0 && i < len(resolved.Pages)-1 {
			select {
			case <-ctx.Done():
				return nil, nil, data.Transient(ctx.Err(), "chapter %d", resolved.Number)
			case <-time.After(d.pageDelay):
			}
		}
	}
	return paths, sizes, nil
}

func (d *Downloader) pack(ctx context.Context, format integrations.Format, job integrations.Job) (string, error) {
	packager, err := d.packagers.Get(format)
	if err != nil {
		return "", err
	}
	job.Output = d.store.PackagePath(job.Number, format.Ext())
	if err := packager.Package(ctx, job); err != nil {
		return "", err
	}
	return job.Output, nil
}

// EnsureFormat returns the path of a chapter's package in format, building it
// from the stored images when it does not exist yet.
func (d *Downloader) EnsureFormat(ctx context.Context, number int, format integrations.Format) (string, error) {
	chapter, err := d.store.LoadManifest(number)
	if err != nil {
		return "", err
	}
	path := d.store.PackagePath(number, format.Ext())
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}

	v, err := d.shared(ctx, fmt.Sprintf("%d/%s", number, format), number, func(ctx context.Context) (interface{}, error) {
		unlock, err := d.store.Lock(ctx, number)
		if err != nil {
			return "", err
		}
		defer unlock()

		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
		assets := chapter.Pages
		if len(assets) == 0 {
			if assets, err = d.store.ImagePaths(number); err != nil {
				return "", err
			}
		}
		d.log.Info("building package", logger.Data{"chapter": number, "format": string(format)})
		return d.pack(ctx, format, integrations.Job{Number: number, Title: chapter.Title, Assets: assets})
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Get returns the completed download of a chapter or data.ErrNotFound.
func (d *Downloader) Get(number int) (*data.DownloadedChapter, error) {
	return d.store.LoadManifest(number)
}

// List returns every completed download in ascending chapter order.
func (d *Downloader) List() ([]*data.DownloadedChapter, error) {
	numbers, err := d.store.ListDownloaded()
	if err != nil {
		return nil, err
	}
	chapters := make([]*data.DownloadedChapter, 0, len(numbers))
	for _, n := range numbers {
		chapter, err := d.store.LoadManifest(n)
		if err != nil {
			d.log.Err(err).Warn("skipping unreadable manifest", logger.Data{"chapter": n})
			continue
		}
		chapters = append(chapters, chapter)
	}
	return chapters, nil
}

// Delete removes every file stored for a chapter and its index record.
func (d *Downloader) Delete(ctx context.Context, number int) error {
	if !d.store.Exists(number) {
		return errors.Wrapf(data.ErrNotFound, "chapter %d", number)
	}
	unlock, err := d.store.Lock(ctx, number)
	if err != nil {
		return err
	}
	err = d.store.Delete(number)
	unlock()
	if err != nil {
		return err
	}

	if d.recorder != nil {
		if err := d.recorder.DeleteChapter(ctx, number); err != nil {
			d.log.Err(err).Warn("failed to remove chapter from index", logger.Data{"chapter": number})
		}
	}
	d.log.Info("chapter deleted", logger.Data{"chapter": number})
	return nil
}

func (d *Downloader) lookup(number int) (data.ChapterEntry, bool) {
	if d.catalog == nil {
		return data.ChapterEntry{}, false
	}
	return d.catalog.Lookup(number)
}

// sendProgress sends a progress update (non-blocking)
func (d *Downloader) sendProgress(progress DownloadProgress) {
	select {
	case d.progressChan <- progress:
	default:
		// Channel full, skip this update
	}
}
