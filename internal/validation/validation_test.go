package validation

import (
	"errors"
	"testing"
	"time"

	"github.com/rao30/bake-house/internal/catalog"
	"github.com/rao30/bake-house/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2025, 5, 10, 9, 30, 0, 0, time.UTC)

func order(pickupIn time.Duration, items ...models.OrderItem) models.OrderRequest {
	return models.OrderRequest{
		Customer:       models.CustomerInfo{Name: "Test User", Email: "user@example.com"},
		PickupDatetime: now.Add(pickupIn),
		Items:          items,
	}
}

func item(key catalog.ProductKey, qty int) models.OrderItem {
	return models.OrderItem{ProductKey: string(key), Quantity: qty}
}

func TestValidateAcceptsValidOrder(t *testing.T) {
	res, err := Validate(catalog.Default(), order(3*time.Hour, item(catalog.Muffin, 12), item(catalog.Cookie, 60)), now)
	require.NoError(t, err)

	assert.True(t, res.IsValid)
	assert.Empty(t, res.Errors)
	assert.NotNil(t, res.Errors)
	assert.Nil(t, res.SuggestedPickupDatetime)
	assert.NoError(t, res.Err())
}

func TestValidateMuffinOverMax(t *testing.T) {
	res, err := Validate(catalog.Default(), order(3*time.Hour, item(catalog.Muffin, 100)), now)
	require.NoError(t, err)

	assert.False(t, res.IsValid)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "Muffin: max 60 per order, requested 100.", res.Errors[0])
}

func TestValidateWaitTime(t *testing.T) {
	res, err := Validate(catalog.Default(), order(time.Hour, item(catalog.Muffin, 1)), now)
	require.NoError(t, err)

	assert.False(t, res.IsValid)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "Muffin: earliest pickup is after 2 hours (min 2025-05-10T11:30:00 UTC).", res.Errors[0])
	require.NotNil(t, res.SuggestedPickupDatetime)
	assert.Equal(t, now.Add(2*time.Hour), *res.SuggestedPickupDatetime)
}

func TestValidateBoundaryIsInclusive(t *testing.T) {
	res, err := Validate(catalog.Default(), order(48*time.Hour, item(catalog.CustomCake, 1)), now)
	require.NoError(t, err)

	assert.True(t, res.IsValid)
}

func TestValidateAccumulatesAcrossItems(t *testing.T) {
	req := order(time.Hour,
		item(catalog.CustomCake, 1),
		item(catalog.Muffin, 61),
		item(catalog.Donut, 2),
	)

	res, err := Validate(catalog.Default(), req, now)
	require.NoError(t, err)

	assert.False(t, res.IsValid)
	assert.Equal(t, []string{
		"Custom Iced Cake: earliest pickup is after 48 hours (min 2025-05-12T09:30:00 UTC).",
		"Muffin: earliest pickup is after 2 hours (min 2025-05-10T11:30:00 UTC).",
		"Muffin: max 60 per order, requested 61.",
		"Doughnut: earliest pickup is after 48 hours (min 2025-05-12T09:30:00 UTC).",
	}, res.Errors)
	require.NotNil(t, res.SuggestedPickupDatetime)
	assert.Equal(t, now.Add(48*time.Hour), *res.SuggestedPickupDatetime)

	var vErr *ValidationError
	require.True(t, errors.As(res.Err(), &vErr))
	assert.Equal(t, res.Errors, vErr.Errors)
}

func TestValidateNoMaxNeverFlagsQuantity(t *testing.T) {
	for _, qty := range []int{1, 61, 1000, 1 << 20} {
		res, err := Validate(catalog.Default(), order(72*time.Hour, item(catalog.SheetCake, qty)), now)
		require.NoError(t, err)
		assert.True(t, res.IsValid, "quantity %d", qty)
	}
}

func TestValidateEveryShortPickupMentionsProduct(t *testing.T) {
	for _, p := range catalog.Default().ListAll() {
		if p.WaitTimeHours == 0 {
			continue
		}
		pickupIn := time.Duration(p.WaitTimeHours)*time.Hour - time.Minute

		res, err := Validate(catalog.Default(), order(pickupIn, item(p.Key, 1)), now)
		require.NoError(t, err)

		assert.False(t, res.IsValid, p.Key)
		require.NotEmpty(t, res.Errors)
		assert.Contains(t, res.Errors[0], p.DisplayName)
	}
}

func TestValidateNormalizesTimezones(t *testing.T) {
	tz := time.FixedZone("UTC+2", 2*60*60)
	req := order(0, item(catalog.Muffin, 1))
	req.PickupDatetime = now.Add(3 * time.Hour).In(tz)

	res, err := Validate(catalog.Default(), req, now.In(tz))
	require.NoError(t, err)
	assert.True(t, res.IsValid)
}

func TestValidateUnknownProduct(t *testing.T) {
	_, err := Validate(catalog.Default(), order(3*time.Hour, models.OrderItem{ProductKey: "baguette", Quantity: 1}), now)

	assert.ErrorIs(t, err, catalog.ErrProductNotFound)
}

func TestValidateRejectsNonPositiveQuantity(t *testing.T) {
	for _, qty := range []int{0, -5} {
		_, err := Validate(catalog.Default(), order(3*time.Hour, item(catalog.Muffin, qty)), now)
		assert.ErrorIs(t, err, ErrInvalidQuantity, "quantity %d", qty)
	}
}

func TestValidateSubSecondClock(t *testing.T) {
	clock := now.Add(700 * time.Millisecond)

	res, err := Validate(catalog.Default(), order(time.Hour, item(catalog.Muffin, 1)), clock)
	require.NoError(t, err)

	require.Len(t, res.Errors, 1)
	assert.Equal(t, "Muffin: earliest pickup is after 2 hours (min 2025-05-10T11:30:00.700000 UTC).", res.Errors[0])
	require.NotNil(t, res.SuggestedPickupDatetime)
	suggested := *res.SuggestedPickupDatetime

	// the quoted instant is itself an acceptable pickup
	retry := order(0, item(catalog.Muffin, 1))
	retry.PickupDatetime = suggested
	res, err = Validate(catalog.Default(), retry, clock)
	require.NoError(t, err)
	assert.True(t, res.IsValid)

	// a whole second earlier is not
	retry.PickupDatetime = time.Date(2025, 5, 10, 11, 30, 0, 0, time.UTC)
	res, err = Validate(catalog.Default(), retry, clock)
	require.NoError(t, err)
	assert.False(t, res.IsValid)
}

func TestValidateRoundsMinimumUpToMicroseconds(t *testing.T) {
	clock := now.Add(1500 * time.Nanosecond)

	res, err := Validate(catalog.Default(), order(time.Hour, item(catalog.Muffin, 1)), clock)
	require.NoError(t, err)

	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "(min 2025-05-10T11:30:00.000002 UTC)")
}
