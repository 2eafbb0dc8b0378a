package models

// FieldKind is the semantic type a presentation layer uses to pick a widget
type FieldKind string

// Field kinds
const (
	KindNumber   FieldKind = "number"
	KindString   FieldKind = "string"
	KindDate     FieldKind = "date"
	KindMoney    FieldKind = "money"
	KindEnum     FieldKind = "enum"
	KindLocation FieldKind = "location"
	KindDistance FieldKind = "distance"
)

// FieldDescriptor names one order column
type FieldDescriptor struct {
	Name string    `json:"name"`
	Kind FieldKind `json:"kind"`
}

var orderSchema = []FieldDescriptor{
	{"id", KindNumber},
	{"lastModified", KindDate},
	{"customer", KindString},
	{"vendor", KindString},
	{"commissionRate", KindNumber},
	{"requestedDeliveryDate", KindDate},
	{"price", KindMoney},
	{"paymentType", KindEnum},
	{"headcount", KindNumber},
	{"servingStyle", KindEnum},
	{"deliveredAt", KindDate},
	{"delayMinutes", KindNumber},
	{"lateReason", KindString},
	{"packaging", KindEnum},
	{"driverName", KindString},
	{"deliveryLocation", KindLocation},
	{"currentLocation", KindLocation},
	{"vendorLocation", KindLocation},
	{"totalDistance", KindDistance},
	{"distanceLeft", KindDistance},
}

// OrderSchema returns the ordered column descriptors of an order
func OrderSchema() []FieldDescriptor {
	out := make([]FieldDescriptor, len(orderSchema))
	copy(out, orderSchema)
	return out
}
