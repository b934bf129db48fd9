// Package orders runs the order lifecycle: preview, create, checkout and
// payment confirmation on top of the SQL store.
package orders

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rao30/bake-house/internal/catalog"
	"github.com/rao30/bake-house/internal/database"
	"github.com/rao30/bake-house/internal/events"
	"github.com/rao30/bake-house/internal/models"
	"github.com/rao30/bake-house/internal/store"
	"github.com/rao30/bake-house/internal/validation"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

var ErrForbidden = errors.New("order belongs to another user")

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

var tracer = otel.Tracer("github.com/rao30/bake-house/internal/orders")

type Service struct {
	db        *sql.DB
	products  validation.ProductLookup
	publisher events.Publisher
	logger    *zap.Logger
	now       func() time.Time
	newID     func() string
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithIDGenerator(newID func() string) Option {
	return func(s *Service) { s.newID = newID }
}

func WithPublisher(p events.Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

func NewService(db *sql.DB, products validation.ProductLookup, logger *zap.Logger, opts ...Option) *Service {
	s := &Service{
		db:        db,
		products:  products,
		publisher: events.Nop{},
		logger:    logger,
		now:       time.Now,
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Preview validates req without storing anything.
func (s *Service) Preview(ctx context.Context, req models.OrderRequest) (validation.Result, error) {
	_, span := tracer.Start(ctx, "orders.Preview")
	defer span.End()

	result, err := validation.Validate(s.products, req, s.now())
	if err != nil {
		span.RecordError(err)
		return validation.Result{}, err
	}
	span.SetAttributes(attribute.Bool("order.valid", result.IsValid))
	return result, nil
}

// Create stores a validated order in the confirmed state.
func (s *Service) Create(ctx context.Context, req models.OrderRequest, owner *models.User) (*models.Order, error) {
	ctx, span := tracer.Start(ctx, "orders.Create")
	defer span.End()

	order, err := s.create(ctx, req, owner, models.OrderStatusConfirmed)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return order, nil
}

// Checkout stores a validated order awaiting payment and opens a payment
// session for its total.
func (s *Service) Checkout(ctx context.Context, req models.OrderRequest, owner *models.User) (*models.Order, *models.PaymentSession, error) {
	ctx, span := tracer.Start(ctx, "orders.Checkout")
	defer span.End()

	order, err := s.create(ctx, req, owner, models.OrderStatusPendingPayment)
	if err != nil {
		span.RecordError(err)
		return nil, nil, err
	}

	amount, err := s.total(order.Items)
	if err != nil {
		span.RecordError(err)
		return nil, nil, err
	}

	session := &models.PaymentSession{
		SessionID: "sess_" + s.newID(),
		Provider:  models.PaymentProviderManual,
		Status:    models.PaymentSessionPending,
		Amount:    amount,
		Currency:  catalog.Currency,
	}

	return order, session, nil
}

func (s *Service) create(ctx context.Context, req models.OrderRequest, owner *models.User, status models.OrderStatus) (*models.Order, error) {
	result, err := validation.Validate(s.products, req, s.now())
	if err != nil {
		return nil, err
	}
	if err := result.Err(); err != nil {
		ordersRejectedTotal.Inc()
		return nil, err
	}

	items := make([]models.OrderItem, len(req.Items))
	copy(items, req.Items)

	// Postgres keeps microseconds; truncating here makes the returned order
	// equal to what a later read produces.
	order := &models.Order{
		ID:             s.newID(),
		Customer:       req.Customer,
		PickupDatetime: req.PickupDatetime.UTC().Truncate(time.Microsecond),
		Items:          items,
		CreatedAt:      s.now().UTC().Truncate(time.Microsecond),
		Status:         status,
	}
	if owner != nil {
		ownerID := owner.ID
		order.UserID = &ownerID
	}

	if err := store.InsertOrder(ctx, s.db, order); err != nil {
		return nil, err
	}

	ordersCreatedTotal.WithLabelValues(string(status)).Inc()
	s.logger.Info("Order created",
		zap.String("order_id", order.ID),
		zap.String("status", string(order.Status)),
		zap.Int("items", len(order.Items)),
	)
	s.publish(ctx, events.TypeOrderCreated, order)

	return order, nil
}

func (s *Service) total(items []models.OrderItem) (decimal.Decimal, error) {
	amount := decimal.Zero
	for _, item := range items {
		product, err := s.products.Lookup(catalog.ProductKey(item.ProductKey))
		if err != nil {
			return decimal.Zero, err
		}
		amount = amount.Add(product.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return amount, nil
}

func (s *Service) Get(ctx context.Context, id string) (*models.Order, error) {
	return store.GetOrder(ctx, s.db, id)
}

// ListForUser returns every order of userID, newest first. A user without
// orders gets an empty slice.
func (s *Service) ListForUser(ctx context.Context, userID string) ([]models.Order, error) {
	return store.ListOrdersForUser(ctx, s.db, userID)
}

// ListForUserPage is ListForUser split into cursor pages. limit is clamped
// to [1, MaxPageSize].
func (s *Service) ListForUserPage(ctx context.Context, userID, cursor string, limit int) (*store.CursorPage, error) {
	if limit < 1 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	return store.ListOrdersCursor(ctx, s.db, userID, cursor, limit)
}

// ConfirmPayment moves the order to paid. Confirming an order that is
// already paid returns it unchanged. An order with an owner may only be
// confirmed by that owner or by an anonymous caller.
func (s *Service) ConfirmPayment(ctx context.Context, id string, requester *models.User) (*models.Order, error) {
	ctx, span := tracer.Start(ctx, "orders.ConfirmPayment")
	defer span.End()
	span.SetAttributes(attribute.String("order.id", id))

	var (
		order        *models.Order
		transitioned bool
	)

	err := database.WithRetry(ctx, s.db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		current, err := store.GetOrderForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}

		if current.UserID != nil && requester != nil && requester.ID != *current.UserID {
			return ErrForbidden
		}

		transitioned = false
		if current.Status == models.OrderStatusPaid && current.PaymentReference != nil {
			order = current
			return nil
		}

		reference := "pay_" + s.newID()
		if err := store.MarkOrderPaid(ctx, tx, id, reference); err != nil {
			return err
		}

		transitioned = current.Status != models.OrderStatusPaid
		current.Status = models.OrderStatusPaid
		if current.PaymentReference == nil {
			current.PaymentReference = &reference
		}
		order = current
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if !errors.Is(err, database.ErrOrderNotFound) && !errors.Is(err, ErrForbidden) {
			return nil, fmt.Errorf("confirm payment: %w", err)
		}
		return nil, err
	}

	if !transitioned {
		paymentsConfirmedTotal.WithLabelValues("already_paid").Inc()
		return order, nil
	}

	paymentsConfirmedTotal.WithLabelValues("paid").Inc()
	s.logger.Info("Order paid",
		zap.String("order_id", order.ID),
		zap.String("payment_reference", *order.PaymentReference),
	)
	s.publish(ctx, events.TypeOrderPaid, order)

	return order, nil
}

// publish never fails the caller; the order is already committed.
func (s *Service) publish(ctx context.Context, eventType string, order *models.Order) {
	event := events.OrderEvent{
		Type:             eventType,
		OrderID:          order.ID,
		Status:           string(order.Status),
		UserID:           order.UserID,
		PaymentReference: order.PaymentReference,
		OccurredAt:       s.now().UTC(),
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("Failed to publish order event",
			zap.String("type", eventType),
			zap.String("order_id", order.ID),
			zap.Error(err),
		)
	}
}
