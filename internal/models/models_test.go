package models

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleOrder() Order {
	return Order{
		ID:               42,
		Customer:         "Acme Ltd",
		Vendor:           "Pizza Place",
		PaymentType:      PaymentCard,
		ServingStyle:     ServingBuffet,
		Packaging:        PackagingHotbox,
		Headcount:        12,
		DeliveryLocation: Loc{Lat: 51.5033, Long: -0.1195},
		CurrentLocation:  Loc{Lat: 51.5145, Long: -0.0983},
		VendorLocation:   Loc{Lat: 51.5226, Long: -0.0810},
		Price: Price{
			Delivery: decimal.RequireFromString("4.50"),
			Items:    decimal.RequireFromString("120.00"),
			Total:    decimal.RequireFromString("124.50"),
		},
	}
}

func TestOrderEnrichedIsIdempotent(t *testing.T) {
	raw := sampleOrder()

	once := raw.Enriched()
	twice := once.Enriched()

	assert.Greater(t, once.DistanceLeft, 0.0)
	assert.Greater(t, once.TotalDistance, once.DistanceLeft)
	assert.Equal(t, once.DistanceLeft, twice.DistanceLeft)
	assert.Equal(t, once.TotalDistance, twice.TotalDistance)
	// the receiver is untouched
	assert.Zero(t, raw.DistanceLeft)
}

func TestOrderValidate(t *testing.T) {
	order := sampleOrder()
	require.NoError(t, order.Validate())

	order.PaymentType = "CHEQUE"
	require.Error(t, order.Validate())

	order = sampleOrder()
	order.DeliveryLocation.Lat = 120
	require.Error(t, order.Validate())
}

func TestOrderJSONWireFormat(t *testing.T) {
	payload := []byte(`{
		"id": 7,
		"customer": "c",
		"vendor": "v",
		"price": {"delivery": 5, "items": 95.5, "total": 100.5, "vatRate": 0.2, "vatableItems": 95.5, "vatAmount": 19.1},
		"paymentType": "PAY_ON_ACCOUNT",
		"servingStyle": "INDIVIDUAL_PORTIONS",
		"packaging": "VENDOR_PROVIDED",
		"deliveryLocation": {"lat": 51.5, "long": -0.1}
	}`)

	var order Order
	require.NoError(t, json.Unmarshal(payload, &order))

	assert.Equal(t, int64(7), order.ID)
	assert.Equal(t, PaymentPayOnAccount, order.PaymentType)
	assert.True(t, order.Price.Total.Equal(decimal.RequireFromString("100.5")))
	assert.Equal(t, -0.1, order.DeliveryLocation.Long)
}

func TestNewPageResult(t *testing.T) {
	res := NewPageResult([]Order{sampleOrder()}, true)
	assert.True(t, res.OK())
	assert.Equal(t, MessageOK, res.Message)
	assert.Equal(t, 1, res.Result.ResultSize)

	last := NewPageResult(nil, false)
	assert.Equal(t, MessageNoMore, last.Message)
	assert.NotNil(t, last.Result.Items)
	assert.Equal(t, 0, last.Result.ResultSize)
}

func TestPagingHelpers(t *testing.T) {
	assert.Equal(t, 1, ClampPage(-3))
	assert.Equal(t, 1, ClampPage(0))
	assert.Equal(t, 4, ClampPage(4))

	assert.True(t, HasNextPage(1, 101))
	assert.False(t, HasNextPage(1, 100))
	assert.False(t, HasNextPage(2, 145))
}

func TestOrderSchemaIsACopy(t *testing.T) {
	schema := OrderSchema()
	require.Len(t, schema, 20)
	schema[0].Name = "mutated"
	assert.Equal(t, "id", OrderSchema()[0].Name)
}
