// Package catalog holds the fixed table of bakery products and the ordering
// constraints attached to each of them.
package catalog

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

type ProductKey string

const (
	CustomCake ProductKey = "custom_cake"
	SheetCake  ProductKey = "sheet_cake"
	Muffin     ProductKey = "muffin"
	Cookie     ProductKey = "cookie"
	Brownie    ProductKey = "brownie"
	Donut      ProductKey = "donut"
)

// Currency is the currency of every unit price in the catalog.
const Currency = "USD"

var ErrProductNotFound = errors.New("product not found in catalog")

type Product struct {
	Key             ProductKey
	DisplayName     string
	DailyCapacity   int
	StorageCapacity int
	WaitTimeHours   int
	PerOrderMax     *int
	UnitPrice       decimal.Decimal
	Extra           map[string]any
}

// Summary is the public listing shape of a product.
type Summary struct {
	Key             ProductKey      `json:"key"`
	DisplayName     string          `json:"display_name"`
	DailyCapacity   int             `json:"daily_capacity"`
	StorageCapacity int             `json:"storage_capacity"`
	WaitTimeHours   int             `json:"wait_time_hours"`
	PerOrderMax     *int            `json:"per_order_max"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	Extra           map[string]any  `json:"extra"`
}

// Catalog is immutable after construction and safe for concurrent use.
type Catalog struct {
	products []Product
	index    map[ProductKey]int
}

func New(products []Product) (*Catalog, error) {
	c := &Catalog{
		products: make([]Product, 0, len(products)),
		index:    make(map[ProductKey]int, len(products)),
	}

	for _, p := range products {
		if p.Key == "" {
			return nil, fmt.Errorf("product %q: empty key", p.DisplayName)
		}
		if _, dup := c.index[p.Key]; dup {
			return nil, fmt.Errorf("product %q: duplicate key", p.Key)
		}
		if p.WaitTimeHours < 0 {
			return nil, fmt.Errorf("product %q: negative wait time", p.Key)
		}
		c.index[p.Key] = len(c.products)
		c.products = append(c.products, copyProduct(p))
	}

	return c, nil
}

// Default returns the bakery's standard product table.
func Default() *Catalog {
	c, err := New(defaultProducts())
	if err != nil {
		panic(err)
	}
	return c
}

func (c *Catalog) Lookup(key ProductKey) (Product, error) {
	i, ok := c.index[key]
	if !ok {
		return Product{}, fmt.Errorf("%w: %s", ErrProductNotFound, key)
	}
	return copyProduct(c.products[i]), nil
}

// ListAll returns products in catalog insertion order.
func (c *Catalog) ListAll() []Product {
	out := make([]Product, len(c.products))
	for i, p := range c.products {
		out[i] = copyProduct(p)
	}
	return out
}

// Keys returns every product key in catalog insertion order.
func (c *Catalog) Keys() []ProductKey {
	keys := make([]ProductKey, len(c.products))
	for i, p := range c.products {
		keys[i] = p.Key
	}
	return keys
}

func (c *Catalog) Summaries() []Summary {
	out := make([]Summary, 0, len(c.products))
	for _, p := range c.ListAll() {
		extra := p.Extra
		if extra == nil {
			extra = map[string]any{}
		}
		out = append(out, Summary{
			Key:             p.Key,
			DisplayName:     p.DisplayName,
			DailyCapacity:   p.DailyCapacity,
			StorageCapacity: p.StorageCapacity,
			WaitTimeHours:   p.WaitTimeHours,
			PerOrderMax:     p.PerOrderMax,
			UnitPrice:       p.UnitPrice,
			Extra:           extra,
		})
	}
	return out
}

func copyProduct(p Product) Product {
	if p.PerOrderMax != nil {
		v := *p.PerOrderMax
		p.PerOrderMax = &v
	}
	if p.Extra != nil {
		extra := make(map[string]any, len(p.Extra))
		for k, v := range p.Extra {
			extra[k] = v
		}
		p.Extra = extra
	}
	return p
}

func intPtr(v int) *int { return &v }

func defaultProducts() []Product {
	return []Product{
		{
			Key:             CustomCake,
			DisplayName:     "Custom Iced Cake",
			DailyCapacity:   10,
			StorageCapacity: 100,
			WaitTimeHours:   48,
			UnitPrice:       decimal.RequireFromString("45.00"),
		},
		{
			Key:             SheetCake,
			DisplayName:     "Sheet Cake",
			DailyCapacity:   20,
			StorageCapacity: 100,
			WaitTimeHours:   24,
			UnitPrice:       decimal.RequireFromString("30.00"),
		},
		{
			Key:             Muffin,
			DisplayName:     "Muffin",
			DailyCapacity:   100,
			StorageCapacity: 0,
			WaitTimeHours:   2,
			PerOrderMax:     intPtr(60),
			UnitPrice:       decimal.RequireFromString("3.50"),
			Extra:           map[string]any{"bulk_daily_capacity": 600},
		},
		{
			Key:             Cookie,
			DisplayName:     "Cookie",
			DailyCapacity:   1000,
			StorageCapacity: 0,
			WaitTimeHours:   2,
			PerOrderMax:     intPtr(60),
			UnitPrice:       decimal.RequireFromString("2.00"),
		},
		{
			Key:             Brownie,
			DisplayName:     "Brownie",
			DailyCapacity:   1000,
			StorageCapacity: 0,
			WaitTimeHours:   2,
			PerOrderMax:     intPtr(60),
			UnitPrice:       decimal.RequireFromString("3.00"),
		},
		{
			Key:             Donut,
			DisplayName:     "Doughnut",
			DailyCapacity:   240,
			StorageCapacity: 0,
			WaitTimeHours:   48,
			PerOrderMax:     intPtr(60),
			UnitPrice:       decimal.RequireFromString("2.50"),
		},
	}
}
