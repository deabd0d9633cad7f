package notify

import (
	"os"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/segmentio/encoding/json"

	"github.com/kerbaras/onepiece-offline/pkg/data"
	"github.com/kerbaras/onepiece-offline/pkg/storage"
)

// Subscription is a browser push subscription.
type Subscription struct {
	Endpoint string           `json:"endpoint" validate:"required,url"`
	Keys     SubscriptionKeys `json:"keys" validate:"required"`
}

type SubscriptionKeys struct {
	P256dh string `json:"p256dh" validate:"required"`
	Auth   string `json:"auth" validate:"required"`
}

var validate = validator.New()

// Subscriptions is the set of push subscribers, keyed by endpoint. When a
// path is set every change is persisted to it.
type Subscriptions struct {
	mu    sync.Mutex
	items []Subscription
	path  string
}

// LoadSubscriptions reads the set stored at path. An empty path keeps the set
// in memory only; a missing file yields an empty set.
func LoadSubscriptions(path string) (*Subscriptions, error) {
	s := &Subscriptions{path: path}
	if path == "" {
		return s, nil
	}
	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, data.Storage(err, "read subscriptions")
	}
	if err := json.Unmarshal(b, &s.items); err != nil {
		return nil, data.Storage(err, "decode subscriptions")
	}
	return s, nil
}

// Add stores sub unless its endpoint is already subscribed. It reports whether
// the set changed.
func (s *Subscriptions) Add(sub Subscription) (bool, error) {
	if err := validate.Struct(sub); err != nil {
		return false, errors.Wrap(err, "invalid subscription")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.items {
		if existing.Endpoint == sub.Endpoint {
			return false, nil
		}
	}
	s.items = append(s.items, sub)
	return true, s.persist()
}

// Remove drops the subscription with endpoint and reports whether it existed.
func (s *Subscriptions) Remove(endpoint string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.items {
		if existing.Endpoint == endpoint {
			s.items = append(s.items[:i], s.items[i+1:]...)
			return true, s.persist()
		}
	}
	return false, nil
}

func (s *Subscriptions) List() []Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Subscription, len(s.items))
	copy(out, s.items)
	return out
}

func (s *Subscriptions) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// persist must be called with mu held.
func (s *Subscriptions) persist() error {
	if s.path == "" {
		return nil
	}
	items := s.items
	if items == nil {
		items = []Subscription{}
	}
	b, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return errors.WithStack(err)
	}
	return storage.WriteFileAtomic(s.path, b)
}
