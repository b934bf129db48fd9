// Package validation checks candidate orders against the product catalog.
package validation

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rao30/bake-house/internal/catalog"
	"github.com/rao30/bake-house/internal/models"
)

const (
	pickupLayout      = "2006-01-02T15:04:05"
	pickupLayoutMicro = "2006-01-02T15:04:05.000000"
)

var ErrInvalidQuantity = errors.New("item quantity must be positive")

type ProductLookup interface {
	Lookup(key catalog.ProductKey) (catalog.Product, error)
}

type Result struct {
	IsValid                 bool       `json:"is_valid"`
	Errors                  []string   `json:"errors"`
	SuggestedPickupDatetime *time.Time `json:"suggested_pickup_datetime"`
}

// ValidationError carries the complete list of constraint violations for an
// order that was rejected.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return "order validation failed: " + strings.Join(e.Errors, "; ")
}

// Validate evaluates every item of req against the catalog as of now. All
// violations are collected; a catalog lookup failure is returned as an error
// instead, since it means the catalog and the request enumeration disagree.
// A non-positive quantity is likewise an error rather than a violation.
func Validate(products ProductLookup, req models.OrderRequest, now time.Time) (Result, error) {
	now = now.UTC()
	pickup := req.PickupDatetime.UTC()

	errs := []string{}
	var latestMin time.Time

	for _, item := range req.Items {
		if item.Quantity <= 0 {
			return Result{}, fmt.Errorf("%w: %s quantity %d", ErrInvalidQuantity, item.ProductKey, item.Quantity)
		}

		product, err := products.Lookup(catalog.ProductKey(item.ProductKey))
		if err != nil {
			return Result{}, err
		}

		minPickup := ceilMicro(now.Add(time.Duration(product.WaitTimeHours) * time.Hour))
		if pickup.Before(minPickup) {
			errs = append(errs, fmt.Sprintf("%s: earliest pickup is after %d hours (min %s UTC).",
				product.DisplayName, product.WaitTimeHours, formatInstant(minPickup)))
			if minPickup.After(latestMin) {
				latestMin = minPickup
			}
		}

		if product.PerOrderMax != nil && item.Quantity > *product.PerOrderMax {
			errs = append(errs, fmt.Sprintf("%s: max %d per order, requested %d.",
				product.DisplayName, *product.PerOrderMax, item.Quantity))
		}
	}

	result := Result{IsValid: len(errs) == 0, Errors: errs}
	if !latestMin.IsZero() {
		result.SuggestedPickupDatetime = &latestMin
	}

	return result, nil
}

// ceilMicro rounds t up to whole microseconds, the precision pickup times
// are stored with.
func ceilMicro(t time.Time) time.Time {
	c := t.Truncate(time.Microsecond)
	if c.Before(t) {
		c = c.Add(time.Microsecond)
	}
	return c
}

func formatInstant(t time.Time) string {
	if t.Nanosecond() == 0 {
		return t.Format(pickupLayout)
	}
	return t.Format(pickupLayoutMicro)
}

// Err returns a *ValidationError when the result is invalid, nil otherwise.
func (r Result) Err() error {
	if r.IsValid {
		return nil
	}
	return &ValidationError{Errors: r.Errors}
}
