package sources

import (
	"bytes"
	"context"
	"fmt"
	"net/http"

	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"

	"github.com/kerbaras/onepiece-offline/pkg/data"
	"github.com/kerbaras/onepiece-offline/pkg/utils"
)

const (
	catalogPath = "/manga/kapitel-mangaliste"
	readerPath  = "/manga/kapitel/%d/1"
)

// DefaultUnavailableMarkers are body fragments the site shows instead of a
// reader for withdrawn chapters.
var DefaultUnavailableMarkers = []string{"Dieses Kapitel ist aktuell nicht verf"}

// OnePieceTube resolves chapters from the onepiece.tube markup.
type OnePieceTube struct {
	api       *utils.API
	extractor Extractor
	log       logger.Logger

	// sourceVariant is a fmt template applied to the reader URL to obtain
	// the unrendered page. Empty disables the variant.
	sourceVariant      string
	unavailableMarkers [][]byte
}

// Option configures a OnePieceTube.
type Option func(*OnePieceTube)

// WithSourceVariant sets the URL template (one %s verb) for the unrendered
// reader page.
func WithSourceVariant(template string) Option {
	return func(o *OnePieceTube) { o.sourceVariant = template }
}

func WithUnavailableMarkers(markers ...string) Option {
	return func(o *OnePieceTube) {
		o.unavailableMarkers = o.unavailableMarkers[:0]
		for _, m := range markers {
			if m != "" {
				o.unavailableMarkers = append(o.unavailableMarkers, []byte(m))
			}
		}
	}
}

// WithLogger sets the logger for extraction events.
func WithLogger(log logger.Logger) Option {
	return func(o *OnePieceTube) { o.log = log }
}

// NewOnePieceTube creates a resolver for the site behind api, recognising the
// default unavailability markers.
func NewOnePieceTube(api *utils.API, opts ...Option) *OnePieceTube {
	o := &OnePieceTube{api: api, log: logger.New()}
	WithUnavailableMarkers(DefaultUnavailableMarkers...)(o)
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *OnePieceTube) ListEntries(ctx context.Context) ([]data.ChapterEntry, error) {
	url := o.api.URL(catalogPath)
	resp, err := o.api.Get(ctx, url)
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, data.Transient(fmt.Errorf("bad status: %d", resp.StatusCode), "get %s", url)
	}
	return o.extractor.ParseEntries(resp.Body)
}

func (o *OnePieceTube) ResolvePages(ctx context.Context, number int) (*data.ChapterData, error) {
	if number <= 0 {
		return nil, errors.Wrapf(data.ErrNotAvailable, "chapter %d is not a valid chapter number", number)
	}

	url := o.api.URL(fmt.Sprintf(readerPath, number))
	resp, err := o.api.Get(ctx, url)
	if err != nil {
		return nil, err
	}
	// Availability is decided before any extraction so removed chapters are
	// never reported as parse failures.
	if resp.StatusCode == http.StatusNotFound {
		return nil, errors.Wrapf(data.ErrNotAvailable, "chapter %d (404)", number)
	}
	if !resp.OK() {
		return nil, data.Transient(fmt.Errorf("bad status: %d", resp.StatusCode), "get %s", url)
	}
	for _, marker := range o.unavailableMarkers {
		if bytes.Contains(resp.Body, marker) {
			return nil, errors.Wrapf(data.ErrNotAvailable, "chapter %d is currently unavailable on the site", number)
		}
	}

	if chapter, ok := o.fromSourceVariant(ctx, number, url); ok {
		return chapter, nil
	}
	return o.extractor.ParseChapter(number, resp.Body)
}

func (o *OnePieceTube) fromSourceVariant(ctx context.Context, number int, url string) (*data.ChapterData, bool) {
	if o.sourceVariant == "" {
		return nil, false
	}
	log := o.log.Data(logger.Data{"chapter": number})

	variantURL := fmt.Sprintf(o.sourceVariant, url)
	resp, err := o.api.Get(ctx, variantURL)
	if err != nil {
		log.Debug("source variant unavailable, using rendered page", logger.Data{"error": err.Error()})
		return nil, false
	}
	if !resp.OK() {
		log.Debug("source variant unavailable, using rendered page", logger.Data{"status": resp.StatusCode})
		return nil, false
	}
	chapter, err := o.extractor.ParseChapter(number, resp.Body)
	if err != nil {
		log.Debug("source variant unparseable, using rendered page", logger.Data{"error": err.Error()})
		return nil, false
	}
	return chapter, true
}
