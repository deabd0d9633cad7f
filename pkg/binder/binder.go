package binder

import (
	"encoding/json"
	"net/http"
	"net/url"
	"reflect"
	"regexp"
	"strings"

	"github.com/creasty/defaults"
	"github.com/go-playground/mold/v4"
	"github.com/go-playground/mold/v4/modifiers"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/schema"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/echo/v4/middleware/logger"

	"github.com/kerbaras/onepiece-offline/pkg/errcodes"
)

var unknownFieldsRE = regexp.MustCompile(`^json: unknown field "(.*)"$`)

// Binder implements echo.Binder. It decodes JSON bodies or query strings,
// cleans the values with mold, applies struct defaults and validates.
type Binder struct {
	queryDecoder *schema.Decoder
	conform      *mold.Transformer
	validate     *validator.Validate
}

func New() *Binder {
	queryDecoder := schema.NewDecoder()
	queryDecoder.SetAliasTag("query")
	validate := validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		for _, tag := range []string{"json", "query"} {
			name := strings.SplitN(fld.Tag.Get(tag), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name != "" {
				return name
			}
		}
		return fld.Name
	})
	return &Binder{queryDecoder, modifiers.New(), validate}
}

// Bind binds, modifies, and validates payloads against the given struct.
func (b *Binder) Bind(i interface{}, c echo.Context) error {
	req := c.Request()
	log := logger.FromEchoContext(c)

	if req.ContentLength > 0 {
		ctype := req.Header.Get(echo.HeaderContentType)
		if !strings.HasPrefix(ctype, echo.MIMEApplicationJSON) {
			return errcodes.UnsupportedMediaType()
		}
		dec := json.NewDecoder(req.Body)
		dec.DisallowUnknownFields()
		defer req.Body.Close()
		if err := dec.Decode(i); err != nil {
			if matches := unknownFieldsRE.FindAllStringSubmatch(err.Error(), -1); len(matches) > 0 && len(matches[0]) > 1 {
				return errcodes.UnknownParameter(matches[0][1])
			}
			if err, ok := err.(*json.UnmarshalTypeError); ok {
				return errcodes.ValidationTypeError(formatUnmarshalTypeError(err))
			}
			log.Err(err).Error("unknown json decode error")
			return errcodes.MalformedPayload()
		}
	} else if req.Method == http.MethodGet || req.Method == http.MethodDelete {
		if err := b.decodeQuery(i, c.QueryParams()); err != nil {
			return err
		}
	} else if disallow, ok := c.Get("disallow_empty_body").(bool); !ok || disallow {
		return errcodes.EmptyRequestBody()
	}

	if err := b.conform.Struct(req.Context(), i); err != nil {
		return errors.WithStack(err)
	}

	if err := defaults.Set(i); err != nil {
		return errors.WithStack(err)
	}

	if err := b.validate.Struct(i); err != nil {
		var errs validator.ValidationErrors
		if errors.As(err, &errs) && len(errs) > 0 {
			return errcodes.ValidationError(formatValidationError(errs[0]))
		}
		return errors.WithStack(err)
	}
	return nil
}

func (b *Binder) decodeQuery(i interface{}, params url.Values) error {
	if err := b.queryDecoder.Decode(i, params); err != nil {
		if errs, ok := err.(schema.MultiError); ok {
			for _, err := range errs {
				if err, ok := err.(schema.ConversionError); ok {
					return errcodes.ValidationTypeError(formatSchemaConversionError(err))
				}
				if err, ok := err.(schema.UnknownKeyError); ok {
					return errcodes.UnknownParameter(err.Key)
				}
				return errors.WithStack(err)
			}
		}
		return errors.WithStack(err)
	}
	return nil
}
