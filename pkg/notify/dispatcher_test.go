package notify

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/kerbaras/onepiece-offline/pkg/data"
)

type mockChannel struct {
	mock.Mock
	name string
}

func (m *mockChannel) Name() string {
	return m.name
}

func (m *mockChannel) Enabled() bool {
	return m.Called().Bool(0)
}

func (m *mockChannel) Notify(ctx context.Context, entries []data.ChapterEntry) (int, error) {
	args := m.Called(ctx, entries)
	return args.Int(0), args.Error(1)
}

type panickingChannel struct{}

func (panickingChannel) Name() string  { return "broken" }
func (panickingChannel) Enabled() bool { return true }
func (panickingChannel) Notify(context.Context, []data.ChapterEntry) (int, error) {
	panic("boom")
}

func TestDispatch_IsolatesFailures(t *testing.T) {
	entries := []data.ChapterEntry{{Number: 1101, Title: "A"}, {Number: 1102, Title: "B"}}

	email := &mockChannel{name: "email"}
	email.On("Enabled").Return(true)
	email.On("Notify", mock.Anything, entries).Return(0, errors.New("smtp down"))

	push := &mockChannel{name: "push"}
	push.On("Enabled").Return(true)
	push.On("Notify", mock.Anything, entries).Return(4, nil)

	d := NewDispatcher(logger.New(), email, panickingChannel{}, push)
	result := d.Dispatch(context.Background(), entries)

	assert.Equal(t, []int{1101, 1102}, result.Chapters)
	assert.Equal(t, 4, result.Sent["push"])
	assert.Equal(t, 0, result.Sent["email"])
	assert.EqualError(t, result.Errors["email"], "smtp down")
	assert.Contains(t, result.ErrorMessages()["broken"], "panicked: boom")
	assert.NotContains(t, result.Errors, "push")
	email.AssertExpectations(t)
	push.AssertExpectations(t)
}

func TestDispatch_SkipsDisabledChannels(t *testing.T) {
	disabled := &mockChannel{name: "email"}
	disabled.On("Enabled").Return(false)

	d := NewDispatcher(logger.New(), disabled)
	result := d.Dispatch(context.Background(), []data.ChapterEntry{{Number: 5}})

	assert.Empty(t, result.Sent)
	assert.Empty(t, result.Errors)
	disabled.AssertNotCalled(t, "Notify", mock.Anything, mock.Anything)
}

func TestDispatch_NoEntries(t *testing.T) {
	ch := &mockChannel{name: "push"}

	d := NewDispatcher(logger.New(), ch)
	result := d.Dispatch(context.Background(), nil)

	assert.Empty(t, result.Chapters)
	ch.AssertNotCalled(t, "Enabled")
	ch.AssertNotCalled(t, "Notify", mock.Anything, mock.Anything)
}

func TestRender(t *testing.T) {
	entry := data.ChapterEntry{Number: 1100, Title: "Kuma"}
	assert.Equal(t, "Kapitel 1100: Kuma", render("Kapitel {number}: {title}", entry))
	assert.Equal(t, "Neues One Piece Kapitel 1100: Kuma", render(DefaultSubjectTemplate, entry))
}
