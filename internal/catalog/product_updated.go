// Package catalog holds the webhooks this app subscribes to and their handlers.
package catalog

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/watzon/saleorhook/internal/credentials"
	"github.com/watzon/saleorhook/internal/subscription"
	"github.com/watzon/saleorhook/internal/webhooks"
)

const (
	ProductUpdatedName = "Example product updated webhook"
	ProductUpdatedPath = "/api/webhooks/saleor/product-updated"
)

// Product is the subset of the product fields the subscription selects.
type Product struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ProductUpdatedPayload is the typed PRODUCT_UPDATED event. Product is nil when
// the platform sends no product.
type ProductUpdatedPayload struct {
	Product *Product `json:"product"`
}

// ProductUpdatedDescriptor builds the subscription selecting product id and name.
func ProductUpdatedDescriptor() (*subscription.Descriptor, error) {
	return subscription.Build(
		subscription.ProductUpdated,
		[]string{"product.id", "product.name"},
		subscription.WithName("ExampleProductUpdated"),
	)
}

// NewProductUpdated returns the product-updated registration.
func NewProductUpdated(store credentials.Store, s webhooks.Settings) (*webhooks.Webhook[ProductUpdatedPayload], error) {
	desc, err := ProductUpdatedDescriptor()
	if err != nil {
		return nil, fmt.Errorf("building product updated subscription: %w", err)
	}

	return webhooks.NewWebhook(webhooks.WebhookConfig[ProductUpdatedPayload]{
		Name:        ProductUpdatedName,
		Path:        ProductUpdatedPath,
		EventType:   subscription.ProductUpdated,
		Descriptor:  desc,
		Credentials: store,
		Handler:     HandleProductUpdated,
		Settings:    s,
	})
}

// HandleProductUpdated logs the event. It has no side effects and never fails.
func HandleProductUpdated(_ context.Context, wc *webhooks.Context[ProductUpdatedPayload]) error {
	logger := log.With().
		Str("event", string(wc.Event)).
		Str("domain", wc.AuthData.Domain).
		Str("request_id", wc.RequestID).
		Logger()

	logger.Info().Msg("New event received")

	if p := wc.Payload.Product; p != nil {
		logger.Info().
			Str("product_id", p.ID).
			Str("product_name", p.Name).
			Msg("Payload contains product")
	}

	return nil
}

// Register adds every webhook in the catalog to reg.
func Register(reg *webhooks.Registry, store credentials.Store, s webhooks.Settings) error {
	productUpdated, err := NewProductUpdated(store, s)
	if err != nil {
		return err
	}
	return reg.Add(productUpdated)
}
