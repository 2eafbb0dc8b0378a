// Package seed loads and generates order datasets for ingestion.
package seed

import (
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"example.com/backstage/services/ordermonitor/internal/models"
)

// Dataset is the outcome of reading an order file
type Dataset struct {
	Orders  []models.Order
	Invalid int
}

// LoadFile reads a JSON array of orders from path
func LoadFile(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open order dataset")
	}
	defer f.Close()
	return Load(f)
}

// Load decodes a JSON array of orders one element at a time. Orders that
// fail validation are counted and left out; malformed JSON is an error.
func Load(r io.Reader) (*Dataset, error) {
	dec := json.NewDecoder(r)
	tok, err := dec.Token()
	if err != nil {
		return nil, errors.Wrap(err, "failed to read order dataset")
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '[' {
		return nil, errors.Errorf("order dataset must be a JSON array, got %v", tok)
	}

	ds := &Dataset{}
	for dec.More() {
		var order models.Order
		if err := dec.Decode(&order); err != nil {
			return nil, errors.Wrapf(err, "failed to decode order #%d", len(ds.Orders)+ds.Invalid+1)
		}
		if err := order.Validate(); err != nil {
			log.Debug().Err(err).Msg("Skipping invalid order in dataset")
			ds.Invalid++
			continue
		}
		ds.Orders = append(ds.Orders, order)
	}
	if _, err := dec.Token(); err != nil {
		return nil, errors.Wrap(err, "order dataset is truncated")
	}
	return ds, nil
}

// Batches splits orders into consecutive slices of at most size orders
func Batches(orders []models.Order, size int) [][]models.Order {
	if size <= 0 {
		size = len(orders)
	}
	var out [][]models.Order
	for start := 0; start < len(orders); start += size {
		out = append(out, orders[start:min(start+size, len(orders))])
	}
	return out
}

var (
	customers   = []string{"Acme Ltd", "Globex", "Initech", "Umbrella Corp", "Hooli", "Stark Industries"}
	vendors     = []string{"Pizza Place", "Pasta Palace", "Sushi Corner", "Burger Barn", "Curry House"}
	drivers     = []string{"Alex Kim", "Sam Patel", "Jo Rivera", "Chris Novak", "Robin Osei"}
	lateReasons = []string{"", "", "", "Traffic", "Vendor delay", "Wrong address"}
	payments    = []models.PaymentType{models.PaymentCard, models.PaymentCash, models.PaymentPayOnAccount}
	styles      = []models.ServingStyle{models.ServingBuffet, models.ServingIndividualPortions}
	packagings  = []models.Packaging{models.PackagingHotbox, models.PackagingColdbox, models.PackagingVendorProvided}
)

// Generate builds n valid orders with ids 1..n around a city centre. The
// same seed yields the same orders.
func Generate(n int, seed int64, now time.Time) []models.Order {
	rng := rand.New(rand.NewSource(seed))
	pick := func(k int) int { return rng.Intn(k) }
	near := func(lat, long float64) models.Loc {
		return models.Loc{
			Lat:  lat + (rng.Float64()-0.5)*0.2,
			Long: long + (rng.Float64()-0.5)*0.2,
		}
	}
	vat := decimal.RequireFromString("0.2")

	orders := make([]models.Order, n)
	for i := range orders {
		items := decimal.NewFromInt(int64(50 + pick(950))).Add(decimal.New(int64(pick(100)), -2))
		delivery := decimal.NewFromInt(int64(3 + pick(10)))
		vatAmount := items.Mul(vat).Round(2)

		requested := now.Add(time.Duration(pick(72)) * time.Hour).Truncate(time.Minute)
		delay := 0
		var delivered *time.Time
		if pick(3) == 0 {
			delay = pick(45)
			at := requested.Add(time.Duration(delay) * time.Minute)
			delivered = &at
		}

		vendorLoc := near(51.5074, -0.1278)
		orders[i] = models.Order{
			ID:                    int64(i + 1),
			LastModified:          now.Add(-time.Duration(pick(240)) * time.Minute).Truncate(time.Second),
			Customer:              customers[pick(len(customers))],
			Vendor:                vendors[pick(len(vendors))],
			CommissionRate:        float64(5+pick(20)) / 100,
			RequestedDeliveryDate: requested,
			Price: models.Price{
				Delivery:     delivery,
				Items:        items,
				Total:        items.Add(delivery).Add(vatAmount),
				VatRate:      vat,
				VatableItems: items,
				VatAmount:    vatAmount,
			},
			PaymentType:      payments[pick(len(payments))],
			Headcount:        5 + pick(95),
			ServingStyle:     styles[pick(len(styles))],
			DeliveredAt:      delivered,
			DelayMinutes:     delay,
			LateReason:       lateReasons[pick(len(lateReasons))],
			Packaging:        packagings[pick(len(packagings))],
			DriverName:       drivers[pick(len(drivers))],
			DeliveryLocation: near(51.5074, -0.1278),
			CurrentLocation:  near(vendorLoc.Lat, vendorLoc.Long),
			VendorLocation:   vendorLoc,
		}
	}
	return orders
}

// Describe summarises a dataset for logs
func (d *Dataset) Describe() string {
	return fmt.Sprintf("%d valid, %d invalid", len(d.Orders), d.Invalid)
}
