package storage

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/segmentio/encoding/json"

	"github.com/kerbaras/onepiece-offline/pkg/data"
	"github.com/kerbaras/onepiece-offline/pkg/utils"
)

const (
	imagesDir    = "images"
	manifestName = "chapter.json"
	lockName     = ".lock"

	// sniffLen is how much of an asset is inspected before it is accepted.
	sniffLen = 3072

	lockRetry = 50 * time.Millisecond
)

// Store owns the on-disk layout:
//
//	root/{number}/images/{basename}
//	root/{number}/{prefix}_{number}.{ext}
//	root/{number}/chapter.json
type Store struct {
	root   string
	prefix string
	api    *utils.API
}

// New creates a Store under root. Package files are named
// {prefix}_{number}.{ext}; assets are fetched through api.
func New(root, prefix string, api *utils.API) *Store {
	return &Store{root: root, prefix: prefix, api: api}
}

// Root returns the directory holding every chapter.
func (s *Store) Root() string {
	return s.root
}

// ChapterDir returns the directory of one chapter, whether or not it exists.
func (s *Store) ChapterDir(number int) string {
	return filepath.Join(s.root, strconv.Itoa(number))
}

func (s *Store) ImagesDir(number int) string {
	return filepath.Join(s.ChapterDir(number), imagesDir)
}

// PackagePath is the final location of a chapter package with extension ext.
func (s *Store) PackagePath(number int, ext string) string {
	return filepath.Join(s.ChapterDir(number), fmt.Sprintf("%s_%d.%s", s.prefix, number, ext))
}

func (s *Store) manifestPath(number int) string {
	return filepath.Join(s.ChapterDir(number), manifestName)
}

func (s *Store) EnsureDirs(number int) error {
	if err := os.MkdirAll(s.ImagesDir(number), 0755); err != nil {
		return data.Storage(err, "create directories for chapter %d", number)
	}
	return nil
}

// FetchAsset downloads url to destPath unless destPath already exists. The
// body is sniffed first and anything that is not an image is rejected without
// touching the filesystem.
func (s *Store) FetchAsset(ctx context.Context, url, destPath string) error {
	if _, err := os.Stat(destPath); err == nil {
		return nil
	}

	return s.api.Stream(ctx, url, func(contentType string, body io.Reader) error {
		br := bufio.NewReaderSize(body, sniffLen)
		head, err := br.Peek(sniffLen)
		if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
			return data.Transient(err, "read %s", url)
		}
		mtype := mimetype.Detect(head)
		if !strings.HasPrefix(mtype.String(), "image/") {
			return data.Transient(
				fmt.Errorf("unexpected content %s (declared %q)", mtype.String(), contentType),
				"fetch %s", url,
			)
		}

		return s.CreateAtomic(destPath, func(tmp string) error {
			f, err := os.OpenFile(tmp, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
			if err != nil {
				return err
			}
			if _, err := io.Copy(f, br); err != nil {
				f.Close()
				return data.Transient(err, "download %s", url)
			}
			return f.Close()
		})
	})
}

// CreateAtomic hands fn a temporary path next to path and moves the result
// into place only when fn succeeds. The temporary path does not exist when fn
// is called.
func (s *Store) CreateAtomic(path string, fn func(tmp string) error) error {
	return CreateAtomic(path, fn)
}

// CreateAtomic is the package-level form of Store.CreateAtomic.
func CreateAtomic(path string, fn func(tmp string) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return data.Storage(err, "create %s", dir)
	}
	base := filepath.Base(path)
	tmp := filepath.Join(dir, fmt.Sprintf(".%s.%s.tmp%s", base, uuid.NewString()[:8], filepath.Ext(base)))

	if err := fn(tmp); err != nil {
		_ = os.Remove(tmp)
		if errors.Is(err, data.ErrTransientNetwork) || errors.Is(err, data.ErrStorage) {
			return err
		}
		return data.Storage(err, "write %s", path)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return data.Storage(err, "rename into %s", path)
	}
	return nil
}

// WriteFileAtomic writes b to path through a temporary file.
func WriteFileAtomic(path string, b []byte) error {
	return CreateAtomic(path, func(tmp string) error {
		return os.WriteFile(tmp, b, 0644)
	})
}

func (s *Store) SaveManifest(chapter *data.DownloadedChapter) error {
	b, err := json.MarshalIndent(chapter, "", "  ")
	if err != nil {
		return errors.Wrapf(err, "encode manifest for chapter %d", chapter.Number)
	}
	return WriteFileAtomic(s.manifestPath(chapter.Number), b)
}

// LoadManifest returns the completed download record of a chapter, or
// data.ErrNotFound.
func (s *Store) LoadManifest(number int) (*data.DownloadedChapter, error) {
	b, err := os.ReadFile(s.manifestPath(number))
	if os.IsNotExist(err) {
		return nil, errors.Wrapf(data.ErrNotFound, "chapter %d is not downloaded", number)
	}
	if err != nil {
		return nil, data.Storage(err, "read manifest for chapter %d", number)
	}
	var chapter data.DownloadedChapter
	if err := json.Unmarshal(b, &chapter); err != nil {
		return nil, data.Storage(err, "decode manifest for chapter %d", number)
	}
	return &chapter, nil
}

// ListDownloaded returns the numbers of chapters with a completed manifest in
// ascending order.
func (s *Store) ListDownloaded() ([]int, error) {
	entries, err := os.ReadDir(s.root)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, data.Storage(err, "list %s", s.root)
	}

	var numbers []int
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		n, err := strconv.Atoi(e.Name())
		if err != nil || n <= 0 {
			continue
		}
		if _, err := os.Stat(s.manifestPath(n)); err != nil {
			continue
		}
		numbers = append(numbers, n)
	}
	sort.Ints(numbers)
	return numbers, nil
}

// HighestNumber returns the highest downloaded chapter number, 0 when none.
func (s *Store) HighestNumber() (int, error) {
	numbers, err := s.ListDownloaded()
	if err != nil || len(numbers) == 0 {
		return 0, err
	}
	return numbers[len(numbers)-1], nil
}

// ImagePaths lists the stored images of a chapter in reading order.
func (s *Store) ImagePaths(number int) ([]string, error) {
	entries, err := os.ReadDir(s.ImagesDir(number))
	if os.IsNotExist(err) {
		return nil, errors.Wrapf(data.ErrNotFound, "no images for chapter %d", number)
	}
	if err != nil {
		return nil, data.Storage(err, "list images of chapter %d", number)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		paths = append(paths, filepath.Join(s.ImagesDir(number), e.Name()))
	}
	SortByFilename(paths)
	return paths, nil
}

// SortByFilename orders paths lexicographically by their base name, which is
// the reading order of a chapter.
func SortByFilename(paths []string) {
	sort.SliceStable(paths, func(i, j int) bool {
		return filepath.Base(paths[i]) < filepath.Base(paths[j])
	})
}

// Lock takes the cross-process lock of a chapter directory, waiting until it
// is free or ctx is done.
func (s *Store) Lock(ctx context.Context, number int) (func(), error) {
	if err := os.MkdirAll(s.ChapterDir(number), 0755); err != nil {
		return nil, data.Storage(err, "create directory for chapter %d", number)
	}
	lock := flock.New(filepath.Join(s.ChapterDir(number), lockName))
	ok, err := lock.TryLockContext(ctx, lockRetry)
	if err != nil {
		return nil, data.Storage(err, "lock chapter %d", number)
	}
	if !ok {
		return nil, data.Storage(errors.New("lock not acquired"), "lock chapter %d", number)
	}
	return func() { _ = lock.Unlock() }, nil
}

// Reset removes everything stored for a chapter except its lock file.
func (s *Store) Reset(number int) error {
	entries, err := os.ReadDir(s.ChapterDir(number))
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return data.Storage(err, "list chapter %d", number)
	}
	for _, e := range entries {
		if e.Name() == lockName {
			continue
		}
		if err := os.RemoveAll(filepath.Join(s.ChapterDir(number), e.Name())); err != nil {
			return data.Storage(err, "reset chapter %d", number)
		}
	}
	return nil
}

// Exists reports whether anything is stored for a chapter.
func (s *Store) Exists(number int) bool {
	_, err := os.Stat(s.ChapterDir(number))
	return err == nil
}

// Delete removes a chapter directory.
func (s *Store) Delete(number int) error {
	dir := s.ChapterDir(number)
	if !s.Exists(number) {
		return errors.Wrapf(data.ErrNotFound, "chapter %d", number)
	}
	if err := os.RemoveAll(dir); err != nil {
		return data.Storage(err, "delete chapter %d", number)
	}
	return nil
}
