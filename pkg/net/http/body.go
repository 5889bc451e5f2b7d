package http

import (
	"reflect"

	"github.com/gofiber/fiber/v2"
	val "gopkg.in/go-playground/validator.v9"

	"github.com/creatorplatform/gateway-core/pkg"
	"github.com/creatorplatform/gateway-core/pkg/constant"
)

var validate = val.New()

// DecodeHandlerFunc receives a request body already decoded and validated
// into s, matching the teacher's withBody decorator shape.
type DecodeHandlerFunc func(s any, c *fiber.Ctx) error

// WithBody decodes the request body into a fresh instance of the same type
// as zero, validates it with struct tags, and calls h. Validation failures
// short-circuit with a 400 envelope.
func WithBody(zero any, h DecodeHandlerFunc) fiber.Handler {
	return func(c *fiber.Ctx) error {
		s := reflect.New(reflect.TypeOf(zero).Elem()).Interface()

		if err := c.BodyParser(s); err != nil {
			return WithError(c, pkg.ValidationError{Code: constant.ErrValidation, Message: "malformed request body"})
		}

		if err := validate.Struct(s); err != nil {
			if fieldErrs, ok := err.(val.ValidationErrors); ok {
				fields := make(map[string]string, len(fieldErrs))
				for _, fe := range fieldErrs {
					fields[fe.Field()] = fe.Tag()
				}

				return WithError(c, pkg.ValidationError{Code: constant.ErrValidation, Message: "validation failed", Fields: fields})
			}

			return WithError(c, pkg.ValidationError{Code: constant.ErrValidation, Message: err.Error()})
		}

		return h(s, c)
	}
}
