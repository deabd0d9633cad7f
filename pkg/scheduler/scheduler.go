package scheduler

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"

	"github.com/kerbaras/onepiece-offline/pkg/data"
	"github.com/kerbaras/onepiece-offline/pkg/notify"
)

const (
	StateStopped = "stopped"
	StateRunning = "running"
)

// maxPending bounds the chapters kept for retry after a failed download.
const maxPending = 64

// ErrPollInProgress is returned by PollNow while another poll is running.
var ErrPollInProgress = errors.New("poll already in progress")

// Detector lists the catalog entries newer than a watermark.
type Detector interface {
	CheckForUpdate(ctx context.Context, currentLatest int) []data.ChapterEntry
	LatestNumber() (int, bool)
}

type Acquirer interface {
	DownloadChapter(ctx context.Context, number int) (*data.DownloadedChapter, error)
}

type Notifier interface {
	Dispatch(ctx context.Context, entries []data.ChapterEntry) notify.Result
}

// Report describes one finished poll.
type Report struct {
	RunID      string    `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Found      []int     `json:"found"`
	Retried    []int     `json:"retried,omitempty"`
	Downloaded []int     `json:"downloaded"`
	Failed     []int     `json:"failed"`
}

// Status is a point-in-time view of the scheduler.
type Status struct {
	State    string  `json:"state"`
	Interval string  `json:"interval"`
	Latest   int     `json:"latest"`
	Pending  []int   `json:"pending,omitempty"`
	Polling  bool    `json:"polling"`
	LastPoll *Report `json:"last_poll,omitempty"`
}

// Scheduler polls for new chapters at a fixed interval, downloads each one
// and announces it. It owns the watermark: the highest chapter number already
// handled. Chapters that failed to download stay pending and are retried on
// later polls even after the watermark has passed them.
type Scheduler struct {
	detector Detector
	acquirer Acquirer
	notifier Notifier
	interval time.Duration
	log      logger.Logger

	latest   atomic.Int64
	polling  sync.Mutex
	inPoll   atomic.Bool
	lastPoll atomic.Pointer[Report]

	pendingMu sync.Mutex
	pending   map[int]data.ChapterEntry

	mu       sync.Mutex
	shutdown chan struct{}
	done     chan struct{}
}

// New creates a stopped scheduler with a zero watermark.
func New(detector Detector, acquirer Acquirer, notifier Notifier, interval time.Duration, log logger.Logger) *Scheduler {
	return &Scheduler{
		detector: detector,
		acquirer: acquirer,
		notifier: notifier,
		interval: interval,
		log:      log,
		pending:  make(map[int]data.ChapterEntry),
	}
}

// Init sets the watermark to the highest of storedHighest and the catalog's
// latest number. It never lowers the watermark.
func (s *Scheduler) Init(storedHighest int) int {
	latest := storedHighest
	if remote, ok := s.detector.LatestNumber(); ok && remote > latest {
		latest = remote
	}
	s.advance(latest)
	s.log.Info("scheduler watermark initialized", logger.Data{"latest": s.Latest()})
	return s.Latest()
}

func (s *Scheduler) Latest() int {
	return int(s.latest.Load())
}

func (s *Scheduler) advance(n int) {
	for {
		cur := s.latest.Load()
		if int64(n) <= cur || s.latest.CompareAndSwap(cur, int64(n)) {
			return
		}
	}
}

func (s *Scheduler) State() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.shutdown != nil {
		return StateRunning
	}
	return StateStopped
}

func (s *Scheduler) Status() Status {
	return Status{
		State:    s.State(),
		Interval: s.interval.String(),
		Latest:   s.Latest(),
		Pending:  s.Pending(),
		Polling:  s.inPoll.Load(),
		LastPoll: s.lastPoll.Load(),
	}
}

// Start launches the poll loop. Starting a running scheduler is a no-op.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.shutdown != nil {
		return
	}
	s.shutdown = make(chan struct{})
	s.done = make(chan struct{})
	go s.loop(s.shutdown, s.done)
	s.log.Info("scheduler started", logger.Data{"interval": s.interval.String()})
}

// Stop ends the poll loop and waits for a running poll to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	shutdown, done := s.shutdown, s.done
	s.shutdown, s.done = nil, nil
	s.mu.Unlock()
	if shutdown == nil {
		return
	}
	close(shutdown)
	<-done
	s.log.Info("scheduler stopped")
}

func (s *Scheduler) loop(shutdown, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-shutdown:
			cancel()
		case <-ctx.Done():
		}
	}()

	for {
		select {
		case <-shutdown:
			return
		case <-ticker.C:
			if _, err := s.PollNow(ctx); errors.Is(err, ErrPollInProgress) {
				s.log.Debug("skipping tick, poll still running")
			}
		}
	}
}

// PollNow runs one poll unless another is already running.
func (s *Scheduler) PollNow(ctx context.Context) (*Report, error) {
	if !s.polling.TryLock() {
		return nil, ErrPollInProgress
	}
	defer s.polling.Unlock()
	s.inPoll.Store(true)
	defer s.inPoll.Store(false)

	report := s.poll(ctx)
	s.lastPoll.Store(report)
	return report, nil
}

// Pending returns the chapters waiting for a retry in ascending order.
func (s *Scheduler) Pending() []int {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()
	numbers := make([]int, 0, len(s.pending))
	for n := range s.pending {
		numbers = append(numbers, n)
	}
	sort.Ints(numbers)
	return numbers
}

func (s *Scheduler) markPending(log logger.Logger, entry data.ChapterEntry) {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()
	s.pending[entry.Number] = entry
	if len(s.pending) <= maxPending {
		return
	}
	oldest := entry.Number
	for n := range s.pending {
		if n < oldest {
			oldest = n
		}
	}
	delete(s.pending, oldest)
	log.Warn("giving up on chapter, too many pending retries", logger.Data{"chapter": oldest})
}

func (s *Scheduler) clearPending(number int) {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()
	delete(s.pending, number)
}

// work merges the pending retries with the new entries, ascending.
func (s *Scheduler) work(entries []data.ChapterEntry) ([]data.ChapterEntry, []int) {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()

	byNumber := make(map[int]data.ChapterEntry, len(entries)+len(s.pending))
	var retried []int
	for n, e := range s.pending {
		byNumber[n] = e
		retried = append(retried, n)
	}
	for _, e := range entries {
		byNumber[e.Number] = e
	}
	out := make([]data.ChapterEntry, 0, len(byNumber))
	for _, e := range byNumber {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	sort.Ints(retried)
	return out, retried
}

func (s *Scheduler) poll(ctx context.Context) *Report {
	report := &Report{RunID: uuid.NewString(), StartedAt: time.Now().UTC()}
	log := s.log.ID(report.RunID).Root(logger.Data{"run_id": report.RunID})

	current := s.Latest()
	entries := s.detector.CheckForUpdate(ctx, current)
	for _, e := range entries {
		report.Found = append(report.Found, e.Number)
	}
	queue, retried := s.work(entries)
	report.Retried = retried
	log.Info("polled for new chapters", logger.Data{"latest": current, "found": len(entries), "retrying": len(retried)})

	for _, entry := range queue {
		if ctx.Err() != nil {
			break
		}
		if _, err := s.acquirer.DownloadChapter(ctx, entry.Number); err != nil {
			report.Failed = append(report.Failed, entry.Number)
			s.markPending(log, entry)
			log.Err(err).Warn("failed to download new chapter", logger.Data{"chapter": entry.Number})
			continue
		}
		report.Downloaded = append(report.Downloaded, entry.Number)
		s.clearPending(entry.Number)
		s.advance(entry.Number)

		result := s.notifier.Dispatch(ctx, []data.ChapterEntry{entry})
		log.Info("new chapter processed", logger.Data{"chapter": entry.Number, "sent": result.Sent})
	}

	report.FinishedAt = time.Now().UTC()
	return report
}
