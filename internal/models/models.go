package models

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"example.com/backstage/services/ordermonitor/internal/geo"
)

// PaymentType is how the customer pays for an order
type PaymentType string

// Payment types
const (
	PaymentCard         PaymentType = "CARD"
	PaymentCash         PaymentType = "CASH"
	PaymentPayOnAccount PaymentType = "PAY_ON_ACCOUNT"
)

// ServingStyle is how the food is served on site
type ServingStyle string

// Serving styles
const (
	ServingBuffet             ServingStyle = "BUFFET"
	ServingIndividualPortions ServingStyle = "INDIVIDUAL_PORTIONS"
)

// Packaging is the container the order travels in
type Packaging string

// Packaging kinds
const (
	PackagingHotbox         Packaging = "HOTBOX"
	PackagingColdbox        Packaging = "COLDBOX"
	PackagingVendorProvided Packaging = "VENDOR_PROVIDED"
)

// Price is the monetary breakdown of an order
type Price struct {
	Delivery     decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"delivery"`
	Items        decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"items"`
	Total        decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"total"`
	VatRate      decimal.Decimal `gorm:"type:numeric(6,4);not null;default:0" json:"vatRate"`
	VatableItems decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"vatableItems"`
	VatAmount    decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"vatAmount"`
}

// Loc is a geographic coordinate in degrees
type Loc struct {
	Lat  float64 `gorm:"not null;default:0" json:"lat" validate:"latitude"`
	Long float64 `gorm:"not null;default:0" json:"long" validate:"longitude"`
}

// Order represents a food delivery order
type Order struct {
	ID                    int64          `gorm:"primaryKey;autoIncrement:false" json:"id" validate:"required,gt=0"`
	LastModified          time.Time      `gorm:"index" json:"lastModified"`
	Customer              string         `gorm:"index" json:"customer"`
	Vendor                string         `gorm:"index" json:"vendor"`
	CommissionRate        float64        `json:"commissionRate"`
	RequestedDeliveryDate time.Time      `json:"requestedDeliveryDate"`
	Price                 Price          `gorm:"embedded;embeddedPrefix:price_" json:"price"`
	PaymentType           PaymentType    `gorm:"type:varchar(32);not null" json:"paymentType" validate:"required,oneof=CARD CASH PAY_ON_ACCOUNT"`
	Headcount             int            `json:"headcount" validate:"gte=0"`
	ServingStyle          ServingStyle   `gorm:"type:varchar(32);not null" json:"servingStyle" validate:"required,oneof=BUFFET INDIVIDUAL_PORTIONS"`
	DeliveredAt           *time.Time     `json:"deliveredAt"`
	DelayMinutes          int            `json:"delayMinutes"`
	LateReason            string         `json:"lateReason"`
	Packaging             Packaging      `gorm:"type:varchar(32);not null" json:"packaging" validate:"required,oneof=HOTBOX COLDBOX VENDOR_PROVIDED"`
	DriverName            string         `json:"driverName"`
	DeliveryLocation      Loc            `gorm:"embedded;embeddedPrefix:delivery_" json:"deliveryLocation"`
	CurrentLocation       Loc            `gorm:"embedded;embeddedPrefix:current_" json:"currentLocation"`
	VendorLocation        Loc            `gorm:"embedded;embeddedPrefix:vendor_" json:"vendorLocation"`
	TotalDistance         float64        `gorm:"-" json:"totalDistance"`
	DistanceLeft          float64        `gorm:"-" json:"distanceLeft"`
	CreatedAt             time.Time      `gorm:"autoCreateTime" json:"-"`
	UpdatedAt             time.Time      `gorm:"autoUpdateTime" json:"-"`
	DeletedAt             gorm.DeletedAt `gorm:"index" json:"-"`
}

var validate = validator.New()

// Validate checks an incoming order before it is stored
func (o *Order) Validate() error {
	if err := validate.Struct(o); err != nil {
		return errors.Wrapf(err, "order %d is invalid", o.ID)
	}
	return nil
}

// Enriched returns a copy of the order with the derived distances set.
// Distances depend only on the coordinates, so enriching twice is a no-op.
func (o Order) Enriched() Order {
	o.DistanceLeft = geo.DistanceMi(
		o.DeliveryLocation.Lat, o.DeliveryLocation.Long,
		o.CurrentLocation.Lat, o.CurrentLocation.Long,
	)
	o.TotalDistance = geo.DistanceMi(
		o.DeliveryLocation.Lat, o.DeliveryLocation.Long,
		o.VendorLocation.Lat, o.VendorLocation.Long,
	)
	return o
}

// SetupModels configures GORM models and runs migrations
func SetupModels(db *gorm.DB) error {
	if err := db.AutoMigrate(&Order{}); err != nil {
		return errors.Wrap(err, "failed to run auto migrations")
	}
	return nil
}
