package returns

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/shopsphere/returns-backend/pkg/db/models"
	"github.com/shopsphere/returns-backend/pkg/enums"
	"github.com/shopsphere/returns-backend/pkg/pagination"
)

func setupReturnsTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	orderItems := `
CREATE TABLE IF NOT EXISTS order_items (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  customer_id TEXT NOT NULL,
  order_number TEXT NOT NULL,
  product_name TEXT NOT NULL,
  payment_ref TEXT NOT NULL,
  paid_price_cents INTEGER NOT NULL,
  refunded_cents INTEGER NOT NULL DEFAULT 0,
  currency TEXT NOT NULL DEFAULT 'USD',
  delivered_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`
	returnRequests := `
CREATE TABLE IF NOT EXISTS return_requests (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  order_item_id TEXT NOT NULL,
  customer_id TEXT NOT NULL,
  order_number TEXT NOT NULL,
  reason TEXT NOT NULL,
  description TEXT NOT NULL,
  rejection_reason TEXT,
  condition_notes TEXT,
  verification_image_ref TEXT,
  return_amount_cents INTEGER NOT NULL,
  currency TEXT NOT NULL DEFAULT 'USD',
  status TEXT NOT NULL DEFAULT 'requested',
  refund_status TEXT NOT NULL DEFAULT 'none',
  pickup_agent_ref TEXT,
  requested_at DATETIME NOT NULL,
  approved_at DATETIME,
  picked_up_at DATETIME,
  received_at DATETIME,
  settled_at DATETIME,
  rejected_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`
	settlementAttempts := `
CREATE TABLE IF NOT EXISTS settlement_attempts (
  id TEXT PRIMARY KEY,
  return_id TEXT NOT NULL,
  actor_user_id TEXT NOT NULL,
  idempotency_token TEXT NOT NULL,
  amount_cents INTEGER NOT NULL,
  currency TEXT NOT NULL,
  outcome TEXT NOT NULL,
  detail TEXT,
  created_at DATETIME
);`
	require.NoError(t, db.Exec(orderItems).Error)
	require.NoError(t, db.Exec(returnRequests).Error)
	require.NoError(t, db.Exec(settlementAttempts).Error)
	return db
}

func newOrderItem(t *testing.T, db *gorm.DB, customerID uuid.UUID, productName string) *models.OrderItem {
	t.Helper()

	delivered := time.Now().UTC().Add(-48 * time.Hour)
	item := &models.OrderItem{
		ID:             uuid.New(),
		OrderID:        uuid.New(),
		CustomerID:     customerID,
		OrderNumber:    "SS-2001",
		ProductName:    productName,
		PaymentRef:     "pay_abc",
		PaidPriceCents: 4500,
		Currency:       "USD",
		DeliveredAt:    &delivered,
	}
	require.NoError(t, db.Create(item).Error)
	return item
}

func newReturnRequest(t *testing.T, db *gorm.DB, item *models.OrderItem, status enums.ReturnStatus, created time.Time) *models.ReturnRequest {
	t.Helper()

	request := &models.ReturnRequest{
		ID:                uuid.New(),
		OrderID:           item.OrderID,
		OrderItemID:       item.ID,
		CustomerID:        item.CustomerID,
		OrderNumber:       item.OrderNumber,
		Reason:            enums.ReturnReasonDamaged,
		Description:       "arrived damaged",
		ReturnAmountCents: item.PaidPriceCents,
		Currency:          item.Currency,
		Status:            status,
		RefundStatus:      enums.RefundStatusNone,
		RequestedAt:       created,
		CreatedAt:         created,
		UpdatedAt:         created,
	}
	require.NoError(t, db.Create(request).Error)
	return request
}

func TestRepositoryTransitionStatus(t *testing.T) {
	db := setupReturnsTestDB(t)
	repo := NewRepository(db)

	item := newOrderItem(t, db, uuid.New(), "Desk Lamp")
	request := newReturnRequest(t, db, item, enums.ReturnStatusRequested, time.Now().UTC())

	moved, err := repo.TransitionStatus(context.Background(), request.ID,
		enums.ReturnStatusRequested, enums.ReturnStatusApproved,
		map[string]any{"approved_at": time.Now().UTC()})
	require.NoError(t, err)
	assert.True(t, moved)

	stored, err := repo.FindReturnRequest(context.Background(), request.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.ReturnStatusApproved, stored.Status)
	assert.NotNil(t, stored.ApprovedAt)

	// A stale transition from the old state must not apply.
	moved, err = repo.TransitionStatus(context.Background(), request.ID,
		enums.ReturnStatusRequested, enums.ReturnStatusApproved, nil)
	require.NoError(t, err)
	assert.False(t, moved)
}

func TestRepositoryCompleteSettlement(t *testing.T) {
	db := setupReturnsTestDB(t)
	repo := NewRepository(db)

	item := newOrderItem(t, db, uuid.New(), "Desk Lamp")
	request := newReturnRequest(t, db, item, enums.ReturnStatusReceived, time.Now().UTC())
	markPending(t, db, request.ID)

	completed, err := repo.CompleteSettlement(context.Background(), request.ID, nil)
	require.NoError(t, err)
	assert.True(t, completed)

	stored, err := repo.FindReturnRequest(context.Background(), request.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.ReturnStatusCompleted, stored.Status)
	assert.Equal(t, enums.RefundStatusProcessed, stored.RefundStatus)
	assert.NotNil(t, stored.SettledAt)

	// A second settlement finds no matching row.
	completed, err = repo.CompleteSettlement(context.Background(), request.ID, nil)
	require.NoError(t, err)
	assert.False(t, completed)
}

func markPending(t *testing.T, db *gorm.DB, id uuid.UUID) {
	t.Helper()
	require.NoError(t, db.Model(&models.ReturnRequest{}).
		Where("id = ?", id).
		Update("refund_status", enums.RefundStatusPending).Error)
}

func TestRepositoryMarkRefundFailed(t *testing.T) {
	db := setupReturnsTestDB(t)
	repo := NewRepository(db)

	item := newOrderItem(t, db, uuid.New(), "Desk Lamp")
	request := newReturnRequest(t, db, item, enums.ReturnStatusReceived, time.Now().UTC())
	markPending(t, db, request.ID)

	marked, err := repo.MarkRefundFailed(context.Background(), request.ID)
	require.NoError(t, err)
	assert.True(t, marked)

	stored, err := repo.FindReturnRequest(context.Background(), request.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.RefundStatusFailed, stored.RefundStatus)
}

func TestRepositoryMarkRefundFailedSkipsCompletedSettlement(t *testing.T) {
	db := setupReturnsTestDB(t)
	repo := NewRepository(db)

	item := newOrderItem(t, db, uuid.New(), "Desk Lamp")
	request := newReturnRequest(t, db, item, enums.ReturnStatusReceived, time.Now().UTC())
	markPending(t, db, request.ID)

	completed, err := repo.CompleteSettlement(context.Background(), request.ID, nil)
	require.NoError(t, err)
	require.True(t, completed)

	// A late failure write must not undo the settlement.
	marked, err := repo.MarkRefundFailed(context.Background(), request.ID)
	require.NoError(t, err)
	assert.False(t, marked)

	stored, err := repo.FindReturnRequest(context.Background(), request.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.ReturnStatusCompleted, stored.Status)
	assert.Equal(t, enums.RefundStatusProcessed, stored.RefundStatus)
}

func TestRepositoryHasActiveReturn(t *testing.T) {
	db := setupReturnsTestDB(t)
	repo := NewRepository(db)

	item := newOrderItem(t, db, uuid.New(), "Desk Lamp")

	active, err := repo.HasActiveReturn(context.Background(), item.ID)
	require.NoError(t, err)
	assert.False(t, active)

	request := newReturnRequest(t, db, item, enums.ReturnStatusRequested, time.Now().UTC())

	active, err = repo.HasActiveReturn(context.Background(), item.ID)
	require.NoError(t, err)
	assert.True(t, active)

	moved, err := repo.TransitionStatus(context.Background(), request.ID,
		enums.ReturnStatusRequested, enums.ReturnStatusRejected,
		map[string]any{"rejected_at": time.Now().UTC(), "rejection_reason": "outside policy"})
	require.NoError(t, err)
	require.True(t, moved)

	active, err = repo.HasActiveReturn(context.Background(), item.ID)
	require.NoError(t, err)
	assert.False(t, active)
}

func TestRepositoryAddRefundedCents(t *testing.T) {
	db := setupReturnsTestDB(t)
	repo := NewRepository(db)

	item := newOrderItem(t, db, uuid.New(), "Desk Lamp")

	require.NoError(t, repo.AddRefundedCents(context.Background(), item.ID, 1500))
	require.NoError(t, repo.AddRefundedCents(context.Background(), item.ID, 500))

	stored, err := repo.FindOrderItem(context.Background(), item.ID)
	require.NoError(t, err)
	assert.Equal(t, 2000, stored.RefundedCents)
}

func TestRepositoryListReturns_pagination(t *testing.T) {
	db := setupReturnsTestDB(t)
	repo := NewRepository(db)

	customerID := uuid.New()
	older := newOrderItem(t, db, customerID, "Desk Lamp")
	newer := newOrderItem(t, db, customerID, "Ceramic Mug")

	now := time.Now().UTC()
	newReturnRequest(t, db, older, enums.ReturnStatusRequested, now.Add(-time.Hour))
	newReturnRequest(t, db, newer, enums.ReturnStatusRequested, now)

	filters := ReturnFilters{CustomerID: &customerID}
	list, err := repo.ListReturns(context.Background(), pagination.Params{Limit: 1}, filters)
	require.NoError(t, err)
	require.Len(t, list.Returns, 1)
	assert.NotEmpty(t, list.NextCursor)
	assert.Equal(t, "Ceramic Mug", list.Returns[0].ProductName)
	assert.Equal(t, "45.00", list.Returns[0].Amount)

	second, err := repo.ListReturns(context.Background(), pagination.Params{Limit: 1, Cursor: list.NextCursor}, filters)
	require.NoError(t, err)
	require.Len(t, second.Returns, 1)
	assert.Equal(t, "Desk Lamp", second.Returns[0].ProductName)
	assert.Empty(t, second.NextCursor)
}

func TestRepositoryListReturns_filters(t *testing.T) {
	db := setupReturnsTestDB(t)
	repo := NewRepository(db)

	customerID := uuid.New()
	itemA := newOrderItem(t, db, customerID, "Desk Lamp")
	itemB := newOrderItem(t, db, customerID, "Ceramic Mug")

	now := time.Now().UTC()
	requestA := newReturnRequest(t, db, itemA, enums.ReturnStatusRequested, now.Add(-time.Minute))
	newReturnRequest(t, db, itemB, enums.ReturnStatusRequested, now)

	moved, err := repo.TransitionStatus(context.Background(), requestA.ID,
		enums.ReturnStatusRequested, enums.ReturnStatusApproved,
		map[string]any{"approved_at": now})
	require.NoError(t, err)
	require.True(t, moved)

	status := enums.ReturnStatusApproved
	list, err := repo.ListReturns(context.Background(), pagination.Params{Limit: 10},
		ReturnFilters{CustomerID: &customerID, Status: &status})
	require.NoError(t, err)
	require.Len(t, list.Returns, 1)
	assert.Equal(t, "Desk Lamp", list.Returns[0].ProductName)
	assert.Equal(t, enums.ReturnStatusApproved, list.Returns[0].Status)
	assert.Empty(t, list.NextCursor)
}

func TestRepositoryFindReturnDetail(t *testing.T) {
	db := setupReturnsTestDB(t)
	repo := NewRepository(db)

	item := newOrderItem(t, db, uuid.New(), "Desk Lamp")
	request := newReturnRequest(t, db, item, enums.ReturnStatusReceived, time.Now().UTC())

	detail := "card expired"
	attempt := &models.SettlementAttempt{
		ID:               uuid.New(),
		ReturnID:         request.ID,
		ActorUserID:      uuid.New(),
		IdempotencyToken: uuid.New(),
		AmountCents:      request.ReturnAmountCents,
		Currency:         request.Currency,
		Outcome:          enums.SettlementOutcomeDeclined,
		Detail:           &detail,
	}
	require.NoError(t, repo.CreateSettlementAttempt(context.Background(), attempt))

	found, err := repo.FindReturnDetail(context.Background(), request.ID)
	require.NoError(t, err)
	assert.Equal(t, "Desk Lamp", found.ProductName)
	assert.Equal(t, "45.00", found.Amount)
	require.Len(t, found.SettlementAttempts, 1)
	assert.Equal(t, enums.SettlementOutcomeDeclined, found.SettlementAttempts[0].Outcome)
	assert.Equal(t, "card expired", *found.SettlementAttempts[0].Detail)
}
