package orders

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/saysophanna/babybear-backend/pkg/db/models"
	"github.com/saysophanna/babybear-backend/pkg/enums"
	"github.com/saysophanna/babybear-backend/pkg/types"
)

func setupOrdersTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	orders := `
CREATE TABLE IF NOT EXISTS orders (
  id TEXT PRIMARY KEY,
  order_number TEXT NOT NULL UNIQUE,
  user_id TEXT NOT NULL,
  currency TEXT NOT NULL DEFAULT 'USD',
  status TEXT NOT NULL DEFAULT 'order_placed',
  payment_method TEXT NOT NULL,
  payment_status TEXT NOT NULL DEFAULT 'pending',
  payment_confirmation TEXT NOT NULL DEFAULT 'na',
  subtotal NUMERIC NOT NULL,
  discount NUMERIC NOT NULL DEFAULT 0,
  delivery_fee NUMERIC NOT NULL DEFAULT 0,
  total NUMERIC NOT NULL,
  delivery_address TEXT,
  promo TEXT,
  charge_ref TEXT,
  proof_url TEXT,
  note TEXT,
  delivered_at DATETIME,
  cancelled_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`
	items := `
CREATE TABLE IF NOT EXISTS order_items (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  product_id TEXT NOT NULL,
  name TEXT NOT NULL,
  unit_price NUMERIC NOT NULL,
  quantity INTEGER NOT NULL,
  image_url TEXT,
  created_at DATETIME
);`
	require.NoError(t, db.Exec(orders).Error)
	require.NoError(t, db.Exec(items).Error)
	return db
}

func seedOrder(t *testing.T, repo Repository, userID uuid.UUID, status enums.OrderStatus, createdAt time.Time) *models.Order {
	t.Helper()
	chargeRef := uuid.NewString()
	order := &models.Order{
		ID:            uuid.New(),
		OrderNumber:   "BB-TEST-" + uuid.NewString()[:8],
		UserID:        userID,
		Currency:      enums.CurrencyUSD,
		Status:        status,
		PaymentMethod: enums.PaymentMethodKHQR,
		PaymentStatus: enums.PaymentStatusPending,
		Subtotal:      decimal.RequireFromString("20.00"),
		Total:         decimal.RequireFromString("21.50"),
		DeliveryFee:   decimal.RequireFromString("1.50"),
		DeliveryAddress: types.Address{
			Recipient: "Dara",
			Phone:     "012345678",
			Line1:     "St 123",
			City:      "Phnom Penh",
		},
		Promo: &types.PromoSnapshot{
			PromoID:         uuid.New(),
			Code:            "WELCOME10",
			DiscountType:    enums.DiscountTypePercentage,
			Value:           decimal.RequireFromString("10"),
			DiscountApplied: decimal.RequireFromString("2.00"),
		},
		ChargeRef: &chargeRef,
		CreatedAt: createdAt,
		Items: []models.OrderItem{
			{
				ID:        uuid.New(),
				ProductID: uuid.New(),
				Name:      "Baby formula",
				UnitPrice: decimal.RequireFromString("20.00"),
				Quantity:  1,
			},
		},
	}
	created, err := repo.Create(context.Background(), order)
	require.NoError(t, err)
	return created
}

func TestRepoCreateAndFindByID(t *testing.T) {
	repo := NewRepository(setupOrdersTestDB(t))
	order := seedOrder(t, repo, uuid.New(), enums.OrderStatusOrderPlaced, time.Now())

	found, err := repo.FindByID(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.OrderNumber, found.OrderNumber)
	assert.Equal(t, "Dara", found.DeliveryAddress.Recipient)
	require.NotNil(t, found.Promo)
	assert.Equal(t, "WELCOME10", found.Promo.Code)
	assert.True(t, found.Promo.DiscountApplied.Equal(decimal.RequireFromString("2.00")))
	require.Len(t, found.Items, 1)
	assert.Equal(t, "Baby formula", found.Items[0].Name)
}

func TestRepoFindByChargeRef(t *testing.T) {
	repo := NewRepository(setupOrdersTestDB(t))
	order := seedOrder(t, repo, uuid.New(), enums.OrderStatusOrderPlaced, time.Now())

	found, err := repo.FindByChargeRef(context.Background(), *order.ChargeRef)
	require.NoError(t, err)
	assert.Equal(t, order.ID, found.ID)

	_, err = repo.FindByChargeRef(context.Background(), "missing-ref")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestRepoListFilters(t *testing.T) {
	repo := NewRepository(setupOrdersTestDB(t))
	buyer := uuid.New()
	other := uuid.New()
	seedOrder(t, repo, buyer, enums.OrderStatusOrderPlaced, time.Now().Add(-2*time.Hour))
	seedOrder(t, repo, buyer, enums.OrderStatusDelivered, time.Now().Add(-time.Hour))
	seedOrder(t, repo, other, enums.OrderStatusOrderPlaced, time.Now())

	byUser, err := repo.List(context.Background(), ListFilters{UserID: &buyer})
	require.NoError(t, err)
	require.Len(t, byUser, 2)
	assert.True(t, byUser[0].CreatedAt.After(byUser[1].CreatedAt), "expected newest order first")

	delivered := enums.OrderStatusDelivered
	filtered, err := repo.List(context.Background(), ListFilters{UserID: &buyer, Status: &delivered})
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, enums.OrderStatusDelivered, filtered[0].Status)
}

func TestRepoSaveUpdatesStatus(t *testing.T) {
	repo := NewRepository(setupOrdersTestDB(t))
	order := seedOrder(t, repo, uuid.New(), enums.OrderStatusOrderPlaced, time.Now())

	order.Status = enums.OrderStatusProcessing
	_, err := repo.Save(context.Background(), order)
	require.NoError(t, err)

	found, err := repo.FindByID(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusProcessing, found.Status)
}
