package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rao30/bake-house/internal/database"
	"github.com/rao30/bake-house/internal/models"
)

const orderColumns = `id, user_id, customer, items, pickup_at, created_at, status, payment_reference`

type rowScanner interface {
	Scan(dest ...any) error
}

func InsertOrder(ctx context.Context, db database.DBTX, order *models.Order) error {
	customer, err := json.Marshal(order.Customer)
	if err != nil {
		return fmt.Errorf("encode customer: %w", err)
	}
	items, err := json.Marshal(order.Items)
	if err != nil {
		return fmt.Errorf("encode items: %w", err)
	}

	_, err = db.ExecContext(ctx,
		`INSERT INTO orders (id, user_id, customer, items, pickup_at, created_at, status, payment_reference)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		order.ID, order.UserID, string(customer), string(items), order.PickupDatetime, order.CreatedAt,
		string(order.Status), order.PaymentReference)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	return nil
}

func GetOrder(ctx context.Context, db database.DBTX, id string) (*models.Order, error) {
	return getOrder(ctx, db, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
}

// GetOrderForUpdate locks the order row until the surrounding transaction ends.
func GetOrderForUpdate(ctx context.Context, tx *sql.Tx, id string) (*models.Order, error) {
	return getOrder(ctx, tx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, id)
}

func getOrder(ctx context.Context, db database.DBTX, query, id string) (*models.Order, error) {
	order, err := scanOrder(db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	return order, nil
}

// MarkOrderPaid moves the order to paid. An existing payment reference is
// kept; reference is only written when none is stored yet.
func MarkOrderPaid(ctx context.Context, db database.DBTX, id, reference string) error {
	result, err := db.ExecContext(ctx,
		`UPDATE orders
		 SET status = $1,
		     payment_reference = COALESCE(payment_reference, $2)
		 WHERE id = $3`,
		string(models.OrderStatusPaid), reference, id)
	if err != nil {
		return fmt.Errorf("mark order paid: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return database.ErrOrderNotFound
	}

	return nil
}

// ListOrdersForUser returns every order owned by userID, newest first.
func ListOrdersForUser(ctx context.Context, db database.DBTX, userID string) ([]models.Order, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+orderColumns+`
		 FROM orders
		 WHERE user_id = $1
		 ORDER BY created_at DESC, id DESC`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	return scanOrders(rows)
}

func ListOrdersCursor(ctx context.Context, db database.DBTX, userID, cursor string, limit int) (*CursorPage, error) {
	var (
		rows *sql.Rows
		err  error
	)

	if cursor == "" {
		rows, err = db.QueryContext(ctx,
			`SELECT `+orderColumns+`
			 FROM orders
			 WHERE user_id = $1
			 ORDER BY created_at DESC, id DESC
			 LIMIT $2`,
			userID, limit+1)
	} else {
		cursorData, decodeErr := DecodeCursor(cursor)
		if decodeErr != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidCursor, decodeErr)
		}
		rows, err = db.QueryContext(ctx,
			`SELECT `+orderColumns+`
			 FROM orders
			 WHERE user_id = $1
			   AND (created_at, id) < ($2, $3)
			 ORDER BY created_at DESC, id DESC
			 LIMIT $4`,
			userID, cursorData.CreatedAt, cursorData.ID, limit+1)
	}
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	orders, err := scanOrders(rows)
	if err != nil {
		return nil, err
	}

	hasMore := len(orders) > limit
	if hasMore {
		orders = orders[:limit]
	}

	var nextCursor string
	if hasMore && len(orders) > 0 {
		lastOrder := orders[len(orders)-1]
		nextCursor = EncodeCursor(OrderCursor{
			CreatedAt: lastOrder.CreatedAt,
			ID:        lastOrder.ID,
		})
	}

	return &CursorPage{
		Items:      orders,
		NextCursor: nextCursor,
		HasMore:    hasMore,
	}, nil
}

func scanOrders(rows *sql.Rows) ([]models.Order, error) {
	orders := []models.Order{}
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, *order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return orders, nil
}

func scanOrder(row rowScanner) (*models.Order, error) {
	var (
		order            models.Order
		userID           sql.NullString
		paymentReference sql.NullString
		customer, items  []byte
		status           string
	)

	err := row.Scan(
		&order.ID,
		&userID,
		&customer,
		&items,
		&order.PickupDatetime,
		&order.CreatedAt,
		&status,
		&paymentReference,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(customer, &order.Customer); err != nil {
		return nil, fmt.Errorf("decode customer of order %s: %w", order.ID, err)
	}
	if err := json.Unmarshal(items, &order.Items); err != nil {
		return nil, fmt.Errorf("decode items of order %s: %w", order.ID, err)
	}

	order.Status = models.OrderStatus(status)
	if !order.Status.Valid() {
		return nil, fmt.Errorf("order %s has unknown status %q", order.ID, status)
	}

	if userID.Valid {
		order.UserID = &userID.String
	}
	if paymentReference.Valid {
		order.PaymentReference = &paymentReference.String
	}
	order.PickupDatetime = order.PickupDatetime.UTC()
	order.CreatedAt = order.CreatedAt.UTC()

	return &order, nil
}
