package repositories

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"example.com/backstage/services/ordermonitor/internal/models"
)

// ErrOrderNotFound is returned when no order has the requested id
var ErrOrderNotFound = errors.New("order not found")

// OrderRepository provides access to order data
type OrderRepository struct {
	db         *gorm.DB // Write database
	readOnlyDB *gorm.DB // Read-only database
}

// NewOrderRepository creates a new order repository
func NewOrderRepository(db *gorm.DB, readOnlyDB *gorm.DB) *OrderRepository {
	if readOnlyDB == nil {
		readOnlyDB = db
	}
	return &OrderRepository{
		db:         db,
		readOnlyDB: readOnlyDB,
	}
}

// Page returns one page of orders in id order. Pages start at 1.
func (r *OrderRepository) Page(ctx context.Context, page, size int) ([]models.Order, error) {
	page = models.ClampPage(page)
	var orders []models.Order
	err := r.readOnlyDB.WithContext(ctx).
		Order("id ASC").
		Limit(size).
		Offset((page - 1) * size).
		Find(&orders).Error
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get orders page %d", page)
	}
	return orders, nil
}

// Count returns the total number of orders
func (r *OrderRepository) Count(ctx context.Context) (int64, error) {
	var total int64
	if err := r.readOnlyDB.WithContext(ctx).Model(&models.Order{}).Count(&total).Error; err != nil {
		return 0, errors.Wrap(err, "failed to count orders")
	}
	return total, nil
}

// GetByID gets an order by its id
func (r *OrderRepository) GetByID(ctx context.Context, id int64) (*models.Order, error) {
	var order models.Order
	err := r.readOnlyDB.WithContext(ctx).First(&order, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.Wrapf(ErrOrderNotFound, "order %d", id)
		}
		return nil, errors.Wrap(err, "failed to get order by ID")
	}
	return &order, nil
}

// UpsertBatch inserts orders, replacing existing rows with the same id
func (r *OrderRepository) UpsertBatch(ctx context.Context, orders []models.Order, batchSize int) error {
	if len(orders) == 0 {
		return nil
	}
	if batchSize <= 0 {
		batchSize = len(orders)
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).
		CreateInBatches(orders, batchSize).Error
	if err != nil {
		return errors.Wrapf(err, "failed to upsert %d orders", len(orders))
	}
	return nil
}

// ModifiedSince returns orders ordered by (updated_at, id) that come after
// the key (since, afterID), oldest first
func (r *OrderRepository) ModifiedSince(ctx context.Context, since time.Time, afterID int64, limit int) ([]models.Order, error) {
	var orders []models.Order
	err := r.readOnlyDB.WithContext(ctx).
		Where("(updated_at, id) > (?, ?)", since, afterID).
		Order("updated_at ASC, id ASC").
		Limit(limit).
		Find(&orders).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to get recently modified orders")
	}
	return orders, nil
}
