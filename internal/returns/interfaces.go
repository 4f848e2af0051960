package returns

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/shopsphere/returns-backend/pkg/db/models"
	"github.com/shopsphere/returns-backend/pkg/enums"
	"github.com/shopsphere/returns-backend/pkg/pagination"
)

// Repository defines persistence operations for the return lifecycle tables.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateReturnRequest(ctx context.Context, request *models.ReturnRequest) (*models.ReturnRequest, error)
	FindReturnRequest(ctx context.Context, id uuid.UUID) (*models.ReturnRequest, error)
	FindOrderItem(ctx context.Context, id uuid.UUID) (*models.OrderItem, error)
	HasActiveReturn(ctx context.Context, orderItemID uuid.UUID) (bool, error)

	// TransitionStatus moves a return from one status to another only when the
	// stored status still matches from. It reports whether a row changed.
	TransitionStatus(ctx context.Context, id uuid.UUID, from, to enums.ReturnStatus, updates map[string]any) (bool, error)

	// CompleteSettlement closes out a received return whose refund has not been
	// processed yet. It reports whether a row changed.
	CompleteSettlement(ctx context.Context, id uuid.UUID, updates map[string]any) (bool, error)

	// MarkRefundFailed flags the refund of a still-received return as failed.
	// It reports whether a row changed; a concurrently completed settlement
	// leaves the row untouched.
	MarkRefundFailed(ctx context.Context, id uuid.UUID) (bool, error)
	AddRefundedCents(ctx context.Context, orderItemID uuid.UUID, deltaCents int) error
	CreateSettlementAttempt(ctx context.Context, attempt *models.SettlementAttempt) error
	ListSettlementAttempts(ctx context.Context, returnID uuid.UUID) ([]models.SettlementAttempt, error)
	ListReturns(ctx context.Context, params pagination.Params, filters ReturnFilters) (*ReturnList, error)
	FindReturnDetail(ctx context.Context, id uuid.UUID) (*ReturnDetail, error)
}
