// Package validation holds the input schemas of the seller wizard and the
// store forms, checked with go-playground/validator.
package validation

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"marketplace/internal/common"

	"github.com/go-playground/validator/v10"
)

// StoreCategories is the category picker shared by the wizard and store forms.
var StoreCategories = []string{"fashion", "electronics", "home", "beauty", "food", "sports", "books", "toys", "other"}

var (
	validate *validator.Validate
	once     sync.Once
)

// Validator returns the process-wide validator with the marketplace tags registered.
func Validator() *validator.Validate {
	once.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return fld.Name
			}
			return name
		})
		_ = v.RegisterValidation("store_category", func(fl validator.FieldLevel) bool {
			return isStoreCategory(fl.Field().String())
		})
		validate = v
	})
	return validate
}

func isStoreCategory(value string) bool {
	for _, c := range StoreCategories {
		if c == value {
			return true
		}
	}
	return false
}

// Struct validates v and returns a *common.ValidationError keyed by JSON field name.
func Struct(v any) error {
	err := Validator().Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = message(fe)
	}
	return &common.ValidationError{Fields: fields}
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "e164":
		return "must be a phone number in international format, e.g. +14155550100"
	case "iso3166_1_alpha2":
		return "must be a two-letter country code"
	case "alphanum":
		return "must contain only letters and digits"
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "store_category":
		return "must be one of: " + strings.Join(StoreCategories, ", ")
	case "min":
		if fe.Kind() == reflect.String {
			return "must be at least " + fe.Param() + " characters"
		}
		return "must be at least " + fe.Param()
	case "max":
		if fe.Kind() == reflect.String {
			return "must be at most " + fe.Param() + " characters"
		}
		return "must be at most " + fe.Param()
	case "gte":
		return "must be at least " + fe.Param()
	case "lte":
		return "must be at most " + fe.Param()
	}
	return "is invalid"
}
