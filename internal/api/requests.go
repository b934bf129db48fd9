package api

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/rao30/bake-house/internal/catalog"
	"github.com/rao30/bake-house/internal/models"
)

// productTag accepts a product_type only if the catalog knows it.
const productTag = "product"

// Naive timestamps carry no zone and are read as UTC.
var pickupLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
}

type customerRequest struct {
	Name  string `json:"name" binding:"required"`
	Email string `json:"email" binding:"required,email"`
	Phone string `json:"phone"`
	Notes string `json:"notes"`
}

type itemRequest struct {
	ProductType string         `json:"product_type" binding:"required,product"`
	Quantity    int            `json:"quantity" binding:"required,gt=0"`
	Options     map[string]any `json:"options"`
}

type orderRequest struct {
	Customer       customerRequest `json:"customer" binding:"required"`
	PickupDatetime string          `json:"pickup_datetime" binding:"required"`
	Items          []itemRequest   `json:"items" binding:"required,min=1,dive"`
}

func (r orderRequest) toModel() (models.OrderRequest, error) {
	pickup, err := parsePickup(r.PickupDatetime)
	if err != nil {
		return models.OrderRequest{}, err
	}

	items := make([]models.OrderItem, len(r.Items))
	for i, item := range r.Items {
		items[i] = models.OrderItem{
			ProductKey: item.ProductType,
			Quantity:   item.Quantity,
			Options:    item.Options,
		}
	}

	return models.OrderRequest{
		Customer: models.CustomerInfo{
			Name:  r.Customer.Name,
			Email: r.Customer.Email,
			Phone: r.Customer.Phone,
			Notes: r.Customer.Notes,
		},
		PickupDatetime: pickup,
		Items:          items,
	}, nil
}

type productSet struct {
	products ProductCatalog
}

var (
	validatorsOnce sync.Once
	validatorsErr  error
	// gin's validator caches parsed tags with their funcs, so the product
	// check is registered once and reads the current catalog from here.
	activeProducts atomic.Value
)

// registerValidators installs the product tag on gin's validator and makes
// failures report JSON field names. The latest catalog passed in wins.
func registerValidators(products ProductCatalog) error {
	activeProducts.Store(productSet{products: products})

	validatorsOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			validatorsErr = errors.New("gin binding engine is not a go-playground validator")
			return
		}
		v.RegisterTagNameFunc(jsonFieldName)
		validatorsErr = v.RegisterValidation(productTag, knownProduct)
	})
	return validatorsErr
}

func knownProduct(fl validator.FieldLevel) bool {
	set, ok := activeProducts.Load().(productSet)
	if !ok {
		return false
	}
	key := catalog.ProductKey(fl.Field().String())
	for _, known := range set.products.Keys() {
		if key == known {
			return true
		}
	}
	return false
}

func jsonFieldName(field reflect.StructField) string {
	name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
	if name == "-" {
		return ""
	}
	return name
}

func parsePickup(value string) (time.Time, error) {
	for _, layout := range pickupLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("pickup_datetime: %q is not an ISO-8601 timestamp", value)
}

type googleAuthRequest struct {
	IDToken string `json:"id_token"`
}

type authResponse struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	User        *models.User `json:"user"`
}

type checkoutResponse struct {
	Order   *models.Order          `json:"order"`
	Payment *models.PaymentSession `json:"payment"`
}

// bindingDetails flattens binding failures into one message per field.
func bindingDetails(err error) []string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []string{err.Error()}
	}

	details := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.TrimPrefix(fe.Namespace(), "orderRequest.")
		switch fe.Tag() {
		case "required":
			details = append(details, field+": field required")
		case "email":
			details = append(details, field+": not a valid email address")
		case "gt":
			details = append(details, field+": must be greater than "+fe.Param())
		case "min":
			details = append(details, field+": must contain at least "+fe.Param()+" entry")
		case productTag:
			details = append(details, field+": unknown product "+fmt.Sprintf("%q", fe.Value()))
		default:
			details = append(details, field+": failed "+fe.Tag())
		}
	}
	return details
}
