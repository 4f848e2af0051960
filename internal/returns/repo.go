package returns

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/shopsphere/returns-backend/pkg/db/models"
	"github.com/shopsphere/returns-backend/pkg/enums"
	"github.com/shopsphere/returns-backend/pkg/pagination"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds a returns repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateReturnRequest(ctx context.Context, request *models.ReturnRequest) (*models.ReturnRequest, error) {
	if err := r.db.WithContext(ctx).Create(request).Error; err != nil {
		return nil, err
	}
	return request, nil
}

func (r *repository) FindReturnRequest(ctx context.Context, id uuid.UUID) (*models.ReturnRequest, error) {
	var request models.ReturnRequest
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&request).Error
	if err != nil {
		return nil, err
	}
	return &request, nil
}

func (r *repository) FindOrderItem(ctx context.Context, id uuid.UUID) (*models.OrderItem, error) {
	var item models.OrderItem
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&item).Error
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *repository) HasActiveReturn(ctx context.Context, orderItemID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.ReturnRequest{}).
		Where("order_item_id = ?", orderItemID).
		Where("status NOT IN ?", []enums.ReturnStatus{enums.ReturnStatusCompleted, enums.ReturnStatusRejected}).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repository) TransitionStatus(ctx context.Context, id uuid.UUID, from, to enums.ReturnStatus, updates map[string]any) (bool, error) {
	values := map[string]any{
		"status":     to,
		"updated_at": time.Now(),
	}
	for k, v := range updates {
		values[k] = v
	}
	res := r.db.WithContext(ctx).
		Model(&models.ReturnRequest{}).
		Where("id = ? AND status = ?", id, from).
		Updates(values)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) CompleteSettlement(ctx context.Context, id uuid.UUID, updates map[string]any) (bool, error) {
	values := map[string]any{
		"status":        enums.ReturnStatusCompleted,
		"refund_status": enums.RefundStatusProcessed,
		"settled_at":    time.Now(),
		"updated_at":    time.Now(),
	}
	for k, v := range updates {
		values[k] = v
	}
	res := r.db.WithContext(ctx).
		Model(&models.ReturnRequest{}).
		Where("id = ? AND status = ? AND refund_status <> ?",
			id, enums.ReturnStatusReceived, enums.RefundStatusProcessed).
		Updates(values)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) MarkRefundFailed(ctx context.Context, id uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.ReturnRequest{}).
		Where("id = ? AND status = ? AND refund_status <> ?",
			id, enums.ReturnStatusReceived, enums.RefundStatusProcessed).
		Updates(map[string]any{
			"refund_status": enums.RefundStatusFailed,
			"updated_at":    time.Now(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) AddRefundedCents(ctx context.Context, orderItemID uuid.UUID, deltaCents int) error {
	return r.db.WithContext(ctx).
		Model(&models.OrderItem{}).
		Where("id = ?", orderItemID).
		Updates(map[string]any{
			"refunded_cents": gorm.Expr("refunded_cents + ?", deltaCents),
			"updated_at":     time.Now(),
		}).Error
}

func (r *repository) CreateSettlementAttempt(ctx context.Context, attempt *models.SettlementAttempt) error {
	return r.db.WithContext(ctx).Create(attempt).Error
}

func (r *repository) ListSettlementAttempts(ctx context.Context, returnID uuid.UUID) ([]models.SettlementAttempt, error) {
	var attempts []models.SettlementAttempt
	err := r.db.WithContext(ctx).
		Where("return_id = ?", returnID).
		Order("created_at ASC").
		Find(&attempts).Error
	if err != nil {
		return nil, err
	}
	return attempts, nil
}

func (r *repository) ListReturns(ctx context.Context, params pagination.Params, filters ReturnFilters) (*ReturnList, error) {
	normalizedLimit := pagination.NormalizeLimit(params.Limit)
	limitWithBuffer := pagination.LimitWithBuffer(params.Limit)

	decodedCursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, err
	}

	query := r.db.WithContext(ctx).
		Table("return_requests rr").
		Select(
			"rr.id",
			"rr.order_number",
			"oi.product_name",
			"rr.reason",
			"rr.status",
			"rr.refund_status",
			"rr.return_amount_cents",
			"rr.currency",
			"rr.requested_at",
			"rr.created_at",
		).
		Joins("JOIN order_items oi ON oi.id = rr.order_item_id")

	if filters.Status != nil {
		query = query.Where("rr.status = ?", *filters.Status)
	}
	if filters.CustomerID != nil {
		query = query.Where("rr.customer_id = ?", *filters.CustomerID)
	}
	if filters.DateFrom != nil {
		query = query.Where("rr.created_at >= ?", *filters.DateFrom)
	}
	if filters.DateTo != nil {
		query = query.Where("rr.created_at <= ?", *filters.DateTo)
	}
	if decodedCursor != nil {
		query = query.Where("(rr.created_at < ?) OR (rr.created_at = ? AND rr.id < ?)",
			decodedCursor.CreatedAt, decodedCursor.CreatedAt, decodedCursor.ID)
	}

	query = query.Order("rr.created_at DESC").Order("rr.id DESC").Limit(limitWithBuffer)

	type returnRecord struct {
		ID                uuid.UUID
		OrderNumber       string
		ProductName       string
		Reason            enums.ReturnReason
		Status            enums.ReturnStatus
		RefundStatus      enums.RefundStatus
		ReturnAmountCents int
		Currency          string
		RequestedAt       time.Time
		CreatedAt         time.Time
	}

	var records []returnRecord
	if err := query.Scan(&records).Error; err != nil {
		return nil, err
	}

	resultRows := records
	nextCursor := ""
	if len(records) > normalizedLimit {
		resultRows = records[:normalizedLimit]
		last := resultRows[len(resultRows)-1]
		nextCursor = pagination.EncodeCursor(pagination.Cursor{
			CreatedAt: last.CreatedAt,
			ID:        last.ID,
		})
	}

	summaries := make([]ReturnSummary, 0, len(resultRows))
	for _, rec := range resultRows {
		summaries = append(summaries, ReturnSummary{
			ID:           rec.ID,
			OrderNumber:  rec.OrderNumber,
			ProductName:  rec.ProductName,
			Reason:       rec.Reason,
			Status:       rec.Status,
			RefundStatus: rec.RefundStatus,
			AmountCents:  rec.ReturnAmountCents,
			Amount:       amountDollars(rec.ReturnAmountCents),
			Currency:     rec.Currency,
			RequestedAt:  rec.RequestedAt,
			CreatedAt:    rec.CreatedAt,
		})
	}

	return &ReturnList{
		Returns:    summaries,
		NextCursor: nextCursor,
	}, nil
}

func (r *repository) FindReturnDetail(ctx context.Context, id uuid.UUID) (*ReturnDetail, error) {
	request, err := r.FindReturnRequest(ctx, id)
	if err != nil {
		return nil, err
	}

	item, err := r.FindOrderItem(ctx, request.OrderItemID)
	if err != nil {
		return nil, err
	}

	attempts, err := r.ListSettlementAttempts(ctx, id)
	if err != nil {
		return nil, err
	}

	views := make([]SettlementAttemptView, 0, len(attempts))
	for _, attempt := range attempts {
		views = append(views, SettlementAttemptView{
			ID:          attempt.ID,
			AmountCents: attempt.AmountCents,
			Outcome:     attempt.Outcome,
			Detail:      attempt.Detail,
			CreatedAt:   attempt.CreatedAt,
		})
	}

	return &ReturnDetail{
		ID:                   request.ID,
		OrderID:              request.OrderID,
		OrderItemID:          request.OrderItemID,
		CustomerID:           request.CustomerID,
		OrderNumber:          request.OrderNumber,
		ProductName:          item.ProductName,
		Reason:               request.Reason,
		Description:          request.Description,
		RejectionReason:      request.RejectionReason,
		ConditionNotes:       request.ConditionNotes,
		VerificationImageRef: request.VerificationImageRef,
		AmountCents:          request.ReturnAmountCents,
		Amount:               amountDollars(request.ReturnAmountCents),
		Currency:             request.Currency,
		Status:               request.Status,
		RefundStatus:         request.RefundStatus,
		PickupAgentRef:       request.PickupAgentRef,
		RequestedAt:          request.RequestedAt,
		ApprovedAt:           request.ApprovedAt,
		PickedUpAt:           request.PickedUpAt,
		ReceivedAt:           request.ReceivedAt,
		SettledAt:            request.SettledAt,
		RejectedAt:           request.RejectedAt,
		SettlementAttempts:   views,
		CreatedAt:            request.CreatedAt,
		UpdatedAt:            request.UpdatedAt,
	}, nil
}
