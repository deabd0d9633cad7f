package binder

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Recipient string `json:"recipient" mod:"trim" validate:"omitempty,email"`
	Numbers   []int  `json:"numbers" validate:"required,min=1"`
}

type query struct {
	ByDate bool `query:"by_date"`
	Limit  int  `query:"limit" default:"50" validate:"gte=0,lte=500"`
}

func TestBind_JSON(t *testing.T) {
	b := New()

	t.Run("only allows application/json", func(tt *testing.T) {
		c := newContext(http.MethodPost, "/", `{"numbers":[1]}`, echo.MIMEApplicationXML)
		assert.Contains(tt, b.Bind(&payload{}, c).Error(), "Unsupported Media Type")
	})

	t.Run("disallows unknown fields", func(tt *testing.T) {
		c := newContext(http.MethodPost, "/", `{"numbers":[1],"foo":"bar"}`, echo.MIMEApplicationJSON)
		assert.Contains(tt, b.Bind(&payload{}, c).Error(), `Unknown Parameter "foo"`)
	})

	t.Run("returns a good message for type errors", func(tt *testing.T) {
		c := newContext(http.MethodPost, "/", `{"numbers":"1"}`, echo.MIMEApplicationJSON)
		assert.Contains(tt, b.Bind(&payload{}, c).Error(), `"numbers" should be of type []int`)
	})

	t.Run("trims and validates", func(tt *testing.T) {
		c := newContext(http.MethodPost, "/", `{"numbers":[3,4],"recipient":" reader@example.com "}`, echo.MIMEApplicationJSON)
		p := payload{}
		require.NoError(tt, b.Bind(&p, c))
		assert.Equal(tt, "reader@example.com", p.Recipient)
		assert.Equal(tt, []int{3, 4}, p.Numbers)
	})

	t.Run("reports the first validation failure", func(tt *testing.T) {
		c := newContext(http.MethodPost, "/", `{"numbers":[]}`, echo.MIMEApplicationJSON)
		assert.Contains(tt, b.Bind(&payload{}, c).Error(), `"numbers" must contain at least 1 element`)
	})

	t.Run("rejects an empty body", func(tt *testing.T) {
		c := newContext(http.MethodPost, "/", "", echo.MIMEApplicationJSON)
		assert.Contains(tt, b.Bind(&payload{}, c).Error(), "Request body can't be empty.")
	})
}

func TestBind_Query(t *testing.T) {
	b := New()

	c := newContext(http.MethodGet, "/?by_date=true", "", "")
	q := query{}
	require.NoError(t, b.Bind(&q, c))
	assert.True(t, q.ByDate)
	assert.Equal(t, 50, q.Limit)

	c = newContext(http.MethodGet, "/?limit=abc", "", "")
	assert.Contains(t, b.Bind(&query{}, c).Error(), `"limit" should be of type int`)

	c = newContext(http.MethodGet, "/?limit=1000", "", "")
	assert.Contains(t, b.Bind(&query{}, c).Error(), `"limit" must be less than or equal to 500`)

	c = newContext(http.MethodGet, "/?page=2", "", "")
	assert.Contains(t, b.Bind(&query{}, c).Error(), `Unknown Parameter "page"`)
}

func newContext(method, target, body, mime string) echo.Context {
	e := echo.New()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if mime != "" {
		req.Header.Set(echo.HeaderContentType, mime)
	}
	return e.NewContext(req, httptest.NewRecorder())
}
