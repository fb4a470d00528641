// Package validate wraps go-playground/validator for the request structs
// the moderation API accepts at its boundary, turning struct tag failures
// into a single types.KindRequestInvalid error with field-level detail.
package validate

import (
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/monosonet/modcore/internal/moderation/types"
)

var (
	once sync.Once
	v    *validator.Validate
)

func instance() *validator.Validate {
	once.Do(func() {
		v = validator.New()
	})
	return v
}

// Struct validates s against its `validate:"..."` tags and returns a
// types.Error of kind KindRequestInvalid naming every failing field.
func Struct(s interface{}) error {
	if err := instance().Struct(s); err != nil {
		fieldErrs, ok := err.(validator.ValidationErrors)
		if !ok {
			return types.Wrap(types.KindRequestInvalid, "validation failed", err)
		}
		details := make([]string, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			details = append(details, fmt.Sprintf("%s: failed %s", fe.Field(), fe.Tag()))
		}
		return types.NewError(types.KindRequestInvalid, strings.Join(details, "; "))
	}
	return nil
}
