package services

import (
	"context"
	"net/http"

	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"

	"github.com/kerbaras/onepiece-offline/pkg/config"
	"github.com/kerbaras/onepiece-offline/pkg/data"
	"github.com/kerbaras/onepiece-offline/pkg/integrations"
	"github.com/kerbaras/onepiece-offline/pkg/notify"
	"github.com/kerbaras/onepiece-offline/pkg/scheduler"
	"github.com/kerbaras/onepiece-offline/pkg/sources"
	"github.com/kerbaras/onepiece-offline/pkg/storage"
	"github.com/kerbaras/onepiece-offline/pkg/utils"
)

// Controller holds every long-lived service of the application. It is built
// once at startup and handed to the server, the scheduler loop and the CLI.
type Controller struct {
	Config     *config.Config
	Source     sources.Resolver
	Store      *storage.Store
	Downloader *Downloader
	Updates    *UpdateDetector
	Email      *notify.EmailChannel
	Push       *notify.PushChannel
	Dispatcher *notify.Dispatcher
	Scheduler  *scheduler.Scheduler
	// Index is nil unless the DuckDB index is enabled.
	Index *data.Repository

	vapidPublic string
	log         logger.Logger
}

func NewController(cfg *config.Config, log logger.Logger) (*Controller, error) {
	api := utils.NewAPI(cfg.Source.BaseURL, cfg.Source.UserAgent, cfg.Source.Timeout)

	sourceOpts := []sources.Option{sources.WithLogger(log)}
	if cfg.Source.SourceVariant != "" {
		sourceOpts = append(sourceOpts, sources.WithSourceVariant(cfg.Source.SourceVariant))
	}
	if len(cfg.Source.UnavailableMarkers) > 0 {
		sourceOpts = append(sourceOpts, sources.WithUnavailableMarkers(cfg.Source.UnavailableMarkers...))
	}
	return build(cfg, log, sources.NewOnePieceTube(api, sourceOpts...), api)
}

// NewControllerWithSource builds a controller around a custom resolver.
func NewControllerWithSource(cfg *config.Config, log logger.Logger, source sources.Resolver) (*Controller, error) {
	return build(cfg, log, source, utils.NewAPI(cfg.Source.BaseURL, cfg.Source.UserAgent, cfg.Source.Timeout))
}

func build(cfg *config.Config, log logger.Logger, source sources.Resolver, api *utils.API) (*Controller, error) {
	format, err := integrations.ParseFormat(cfg.Package.DefaultFormat)
	if err != nil {
		return nil, errors.Wrapf(data.ErrConfiguration, "%v", err)
	}

	c := &Controller{Config: cfg, Source: source, log: log}
	c.Store = storage.New(cfg.DataDir, cfg.Package.Prefix, api)
	c.Updates = NewUpdateDetector(source, log)

	opts := []DownloaderOption{
		WithFormat(format),
		WithCatalog(c.Updates),
		WithPageDelay(cfg.Source.PageDelay),
		WithDownloadTimeout(cfg.Source.DownloadTimeout),
		WithDownloaderLogger(log),
	}
	if cfg.Index.Enabled {
		if c.Index, err = data.OpenRepository(cfg.Index.Path); err != nil {
			return nil, errors.Wrap(err, "open chapter index")
		}
		opts = append(opts, WithRecorder(c.Index))
	}
	packagers := integrations.NewPackagers(integrations.Metadata{
		Series:   cfg.Package.Series,
		Author:   cfg.Package.Author,
		Language: cfg.Package.Language,
	})
	c.Downloader = NewDownloader(source, c.Store, packagers, opts...)

	if err := c.buildNotifiers(); err != nil {
		c.Close()
		return nil, err
	}
	c.Scheduler = scheduler.New(c.Updates, c.Downloader, c.Dispatcher, cfg.Scheduler.Interval, log)
	return c, nil
}

func (c *Controller) buildNotifiers() error {
	cfg := c.Config
	c.Email = notify.NewEmailChannel(notify.SMTPSettings{
		Host:            cfg.SMTP.Host,
		Port:            cfg.SMTP.Port,
		Username:        cfg.SMTP.Username,
		Password:        cfg.SMTP.Password,
		Sender:          cfg.SMTP.Sender,
		Recipient:       cfg.SMTP.Recipient,
		SSL:             cfg.SMTP.SSL,
		Timeout:         cfg.SMTP.Timeout,
		SubjectTemplate: cfg.SMTP.SubjectTemplate,
		BodyTemplate:    cfg.SMTP.BodyTemplate,
	}, c.log)

	keys := notify.VAPIDKeys{Public: cfg.Push.VAPIDPublicKey, Private: cfg.Push.VAPIDPrivateKey}
	if keys.Public == "" {
		generated, err := notify.GenerateVAPIDKeys()
		if err != nil {
			return err
		}
		keys = generated
		c.log.Warn("no vapid keys configured, generated a new pair; existing subscriptions will stop working on restart", logger.Data{
			"vapid_public_key": keys.Public,
		})
	}
	subs, err := notify.LoadSubscriptions(cfg.Push.SubscriptionsFile)
	if err != nil {
		return err
	}
	sender := notify.NewWebPushSender(keys, cfg.Push.Subscriber, cfg.Push.TTL, &http.Client{Timeout: cfg.Source.Timeout})
	c.Push = notify.NewPushChannel(subs, sender, cfg.Push.Enabled, c.log)
	c.vapidPublic = keys.Public

	c.Dispatcher = notify.NewDispatcher(c.log, c.Email, c.Push)
	return nil
}

// VAPIDPublicKey is the key browsers subscribe with.
func (c *Controller) VAPIDPublicKey() string {
	return c.vapidPublic
}

// Bootstrap loads the catalog and sets the scheduler watermark from it and
// from the chapters already on disk.
func (c *Controller) Bootstrap(ctx context.Context) error {
	if err := c.Updates.Refresh(ctx); err != nil {
		c.log.Err(err).Warn("catalog unavailable at startup")
	}
	highest, err := c.Store.HighestNumber()
	if err != nil {
		return err
	}
	c.Scheduler.Init(highest)
	return nil
}

// Latest returns the catalog entry with the highest number, refreshing the
// catalog first. A failed refresh falls back to the cached catalog.
func (c *Controller) Latest(ctx context.Context) (data.ChapterEntry, error) {
	_ = c.Updates.Refresh(ctx)
	latest, ok := c.Updates.LatestNumber()
	if !ok {
		return data.ChapterEntry{}, errors.Wrap(data.ErrTransientNetwork, "could not determine latest chapter number")
	}
	entry, ok := c.Updates.Lookup(latest)
	if !ok {
		return data.ChapterEntry{}, errors.Wrap(data.ErrNotFound, "catalog lists no chapters")
	}
	return entry, nil
}

// NotifySince emails every catalog chapter newer than currentLatest. An empty
// recipient uses the configured one.
func (c *Controller) NotifySince(ctx context.Context, currentLatest int, recipient string) ([]data.ChapterEntry, notify.Result, error) {
	entries := c.Updates.CheckForUpdate(ctx, currentLatest)
	email := c.Email
	if recipient != "" {
		email = email.WithRecipient(recipient)
	}
	result := notify.NewDispatcher(c.log, email).Dispatch(ctx, entries)
	if len(entries) == 0 {
		return entries, result, nil
	}
	if err := result.Errors[email.Name()]; err != nil {
		return entries, result, err
	}
	if _, attempted := result.Sent[email.Name()]; !attempted {
		return entries, result, errors.Wrap(data.ErrConfiguration, "email notifications are not configured")
	}
	return entries, result, nil
}

func (c *Controller) Close() error {
	if c.Scheduler != nil {
		c.Scheduler.Stop()
	}
	if c.Index != nil {
		return c.Index.Close()
	}
	return nil
}
