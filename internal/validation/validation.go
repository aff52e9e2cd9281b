// Package validation checks records that cross a trust boundary, such as the
// evidence rows parsed from model output, before anything else reads them.
package validation

import (
	"errors"
	"fmt"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/gallery-ai/critic/internal/critiqueerrors"
	"github.com/gallery-ai/critic/internal/models"
)

type customTag struct {
	fn      validator.Func
	message string
}

var customTags = map[string]customTag{
	"dimension":     {validateDimension, "must be one of the ten quality dimensions"},
	"filename":      {validateFilename, "must be a plain image filename"},
	"no_null_bytes": {validateNoNullBytes, "must not contain NULL bytes"},
}

// validate is read-only after newValidator returns and safe for concurrent use.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	for tag, c := range customTags {
		if err := v.RegisterValidation(tag, c.fn); err != nil {
			panic(fmt.Sprintf("register %s validator: %v", tag, err))
		}
	}

	return v
}

// ValidateStruct validates s against its validate tags. Failures are returned
// as a *critiqueerrors.ValidationError naming the first bad field.
func ValidateStruct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) || len(fieldErrors) == 0 {
		return err
	}

	messages := make([]string, 0, len(fieldErrors))
	for _, fe := range fieldErrors {
		messages = append(messages, describe(fe))
	}

	return critiqueerrors.NewValidationError(fieldErrors[0].Field(),
		"validation failed: "+strings.Join(messages, "; "))
}

func describe(fe validator.FieldError) string {
	if c, ok := customTags[fe.Tag()]; ok {
		return fe.Field() + " " + c.message
	}

	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	default:
		return fe.Field() + " is invalid"
	}
}

func stringValue(fl validator.FieldLevel) (string, bool) {
	field := fl.Field()

	if field.Kind() == reflect.Ptr {
		if field.IsNil() {
			return "", false
		}

		field = field.Elem()
	}

	if field.Kind() != reflect.String {
		return "", false
	}

	return field.String(), true
}

// validateDimension accepts models.Dimension values and strings naming a known dimension.
func validateDimension(fl validator.FieldLevel) bool {
	if fl.Field().Type() == reflect.TypeFor[models.Dimension]() {
		return models.Dimension(fl.Field().String()).Valid()
	}

	s, ok := stringValue(fl)
	if !ok {
		return false
	}

	_, ok = models.ParseDimension(s)

	return ok
}

// validateFilename rejects paths: evidence filenames are joined onto the images directory.
func validateFilename(fl validator.FieldLevel) bool {
	s, ok := stringValue(fl)
	if !ok {
		return true
	}

	return s == "" || (filepath.IsLocal(s) && filepath.Base(s) == s && !strings.ContainsRune(s, '\\'))
}

func validateNoNullBytes(fl validator.FieldLevel) bool {
	s, ok := stringValue(fl)

	return !ok || !strings.Contains(s, "\x00")
}
