// Package pricefeed applies point-of-sale price and availability batches to outlet
// stock rows matched by barcode.
package pricefeed

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"catalogue/internal/core/types"
)

// Entry is one line of a feed. A nil Price means the field was absent or null.
type Entry struct {
	Barcodes  []string     `json:"barcode" validate:"required,min=1"`
	Price     *types.Money `json:"price" validate:"required"`
	Available int64        `json:"available" validate:"gte=0"`
}

// Request is a feed batch as submitted over HTTP or the queue.
type Request struct {
	Token         string  `json:"token" validate:"required"`
	APIVersion    string  `json:"apiVersion" validate:"required"`
	SystemVersion string  `json:"systemVersion" validate:"required"`
	Entries       []Entry `json:"entries" validate:"dive"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks the batch envelope. Entry-level problems are not fatal to the
// batch and are only reported so callers can log them.
func (r *Request) Validate() error {
	err := validate.Struct(r)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	for _, fe := range verrs {
		switch fe.StructField() {
		case "Token", "APIVersion", "SystemVersion":
			return fmt.Errorf("%s is required", fe.Field())
		}
	}
	return &EntryErrors{Errors: verrs}
}

// EntryErrors lists entries that failed validation while the envelope is valid.
type EntryErrors struct {
	Errors validator.ValidationErrors
}

func (e *EntryErrors) Error() string {
	return fmt.Sprintf("%d invalid feed entries", len(e.Errors))
}
