package notify

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/robinjoseph08/golib/logger"

	"github.com/kerbaras/onepiece-offline/pkg/data"
)

// Channel delivers new-chapter notifications through one medium.
type Channel interface {
	Name() string
	Enabled() bool
	// Notify returns how many notifications were delivered. A non-nil error
	// may accompany a partial count.
	Notify(ctx context.Context, entries []data.ChapterEntry) (int, error)
}

// Result summarizes one dispatch.
type Result struct {
	Chapters []int            `json:"chapters"`
	Sent     map[string]int   `json:"sent"`
	Errors   map[string]error `json:"-"`
}

// ErrorMessages returns the per-channel errors as strings.
func (r Result) ErrorMessages() map[string]string {
	out := make(map[string]string, len(r.Errors))
	for name, err := range r.Errors {
		out[name] = err.Error()
	}
	return out
}

// Dispatcher fans entries out to every enabled channel. Channels are isolated:
// a failure in one never prevents the others from being attempted.
type Dispatcher struct {
	channels []Channel
	log      logger.Logger
}

func NewDispatcher(log logger.Logger, channels ...Channel) *Dispatcher {
	return &Dispatcher{channels: channels, log: log}
}

func (d *Dispatcher) Channels() []Channel {
	return d.channels
}

func (d *Dispatcher) Dispatch(ctx context.Context, entries []data.ChapterEntry) Result {
	result := Result{
		Chapters: make([]int, 0, len(entries)),
		Sent:     map[string]int{},
		Errors:   map[string]error{},
	}
	for _, e := range entries {
		result.Chapters = append(result.Chapters, e.Number)
	}
	if len(entries) == 0 {
		d.log.Info("no new chapters to notify")
		return result
	}

	for _, ch := range d.channels {
		if !ch.Enabled() {
			continue
		}
		sent, err := d.notify(ctx, ch, entries)
		result.Sent[ch.Name()] = sent
		if err != nil {
			result.Errors[ch.Name()] = err
			d.log.Err(err).Error("notification channel failed", logger.Data{"channel": ch.Name(), "sent": sent})
		}
	}

	d.log.Info("notifications dispatched", logger.Data{"chapters": joinNumbers(result.Chapters), "sent": result.Sent})
	return result
}

func (d *Dispatcher) notify(ctx context.Context, ch Channel, entries []data.ChapterEntry) (sent int, err error) {
	defer func() {
		if r := recover(); r != nil {
			sent, err = 0, panicError{channel: ch.Name(), value: r}
		}
	}()
	return ch.Notify(ctx, entries)
}

type panicError struct {
	channel string
	value   interface{}
}

func (e panicError) Error() string {
	return fmt.Sprintf("channel %s panicked: %v", e.channel, e.value)
}

func joinNumbers(numbers []int) string {
	parts := make([]string, len(numbers))
	for i, n := range numbers {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ",")
}

// render fills {number} and {title} in tmpl.
func render(tmpl string, entry data.ChapterEntry) string {
	return strings.NewReplacer(
		"{number}", strconv.Itoa(entry.Number),
		"{title}", entry.Title,
	).Replace(tmpl)
}
