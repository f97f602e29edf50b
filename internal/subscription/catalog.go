package subscription

import (
	"errors"
	"sort"
	"strings"
)

// EventType identifies an asynchronous platform event.
type EventType string

// Supported asynchronous events.
const (
	ProductCreated  EventType = "PRODUCT_CREATED"
	ProductUpdated  EventType = "PRODUCT_UPDATED"
	ProductDeleted  EventType = "PRODUCT_DELETED"
	OrderCreated    EventType = "ORDER_CREATED"
	OrderUpdated    EventType = "ORDER_UPDATED"
	OrderFullyPaid  EventType = "ORDER_FULLY_PAID"
	CustomerCreated EventType = "CUSTOMER_CREATED"
	CustomerUpdated EventType = "CUSTOMER_UPDATED"
	CheckoutCreated EventType = "CHECKOUT_CREATED"
	CheckoutUpdated EventType = "CHECKOUT_UPDATED"
)

// ErrUnknownEvent is returned by ParseEventType for values outside the catalog.
var ErrUnknownEvent = errors.New("unknown event type")

// Schema is a field tree. A nil child marks a leaf (scalar) field.
type Schema map[string]Schema

type eventSpec struct {
	graphQLType string
	schema      Schema
}

var (
	money = Schema{
		"amount":   nil,
		"currency": nil,
	}

	taxedMoney = Schema{
		"currency": nil,
		"gross":    money,
		"net":      money,
		"tax":      money,
	}

	productSchema = Schema{
		"id":          nil,
		"name":        nil,
		"slug":        nil,
		"description": nil,
		"created":     nil,
		"updatedAt":   nil,
		"productType": {
			"id":   nil,
			"name": nil,
		},
		"category": {
			"id":   nil,
			"name": nil,
			"slug": nil,
		},
		"variants": {
			"id":   nil,
			"name": nil,
			"sku":  nil,
		},
		"metadata": {
			"key":   nil,
			"value": nil,
		},
	}

	userSchema = Schema{
		"id":         nil,
		"email":      nil,
		"firstName":  nil,
		"lastName":   nil,
		"isActive":   nil,
		"dateJoined": nil,
		"metadata": {
			"key":   nil,
			"value": nil,
		},
	}

	orderSchema = Schema{
		"id":        nil,
		"number":    nil,
		"status":    nil,
		"created":   nil,
		"userEmail": nil,
		"isPaid":    nil,
		"total":     taxedMoney,
		"user": {
			"id":    nil,
			"email": nil,
		},
		"lines": {
			"id":          nil,
			"productName": nil,
			"variantName": nil,
			"productSku":  nil,
			"quantity":    nil,
			"totalPrice":  taxedMoney,
		},
	}

	checkoutSchema = Schema{
		"id":      nil,
		"token":   nil,
		"email":   nil,
		"created": nil,
		"channel": {
			"id":   nil,
			"slug": nil,
		},
		"totalPrice": taxedMoney,
		"lines": {
			"id":       nil,
			"quantity": nil,
			"variant": {
				"id":   nil,
				"name": nil,
				"sku":  nil,
			},
		},
	}
)

// envelope adds the fields every event type exposes next to its subject.
func envelope(subject string, s Schema) Schema {
	return Schema{
		"issuedAt": nil,
		"version":  nil,
		subject:    s,
	}
}

var catalog = map[EventType]eventSpec{
	ProductCreated:  {"ProductCreated", envelope("product", productSchema)},
	ProductUpdated:  {"ProductUpdated", envelope("product", productSchema)},
	ProductDeleted:  {"ProductDeleted", envelope("product", productSchema)},
	OrderCreated:    {"OrderCreated", envelope("order", orderSchema)},
	OrderUpdated:    {"OrderUpdated", envelope("order", orderSchema)},
	OrderFullyPaid:  {"OrderFullyPaid", envelope("order", orderSchema)},
	CustomerCreated: {"CustomerCreated", envelope("user", userSchema)},
	CustomerUpdated: {"CustomerUpdated", envelope("user", userSchema)},
	CheckoutCreated: {"CheckoutCreated", envelope("checkout", checkoutSchema)},
	CheckoutUpdated: {"CheckoutUpdated", envelope("checkout", checkoutSchema)},
}

// ParseEventType normalises a header value such as "product_updated" and
// checks it against the catalog.
func ParseEventType(s string) (EventType, error) {
	e := EventType(strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), "-", "_")))
	if !e.Known() {
		return "", ErrUnknownEvent
	}
	return e, nil
}

// Events returns every supported event type in lexical order.
func Events() []EventType {
	out := make([]EventType, 0, len(catalog))
	for e := range catalog {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Known reports whether the event type is in the catalog.
func (e EventType) Known() bool {
	_, ok := catalog[e]
	return ok
}

// GraphQLType returns the subscription payload type, or "" for unknown events.
func (e EventType) GraphQLType() string {
	return catalog[e].graphQLType
}

// Schema returns the field tree the platform exposes for the event.
func (e EventType) Schema() Schema {
	return catalog[e].schema
}

func (e EventType) String() string {
	return string(e)
}
