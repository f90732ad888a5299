package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShippingStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from ShippingStatus
		to   ShippingStatus
		want bool
	}{
		{ShippingStatusReceived, ShippingStatusPreparing, true},
		{ShippingStatusReceived, ShippingStatusCancelled, true},
		{ShippingStatusPreparing, ShippingStatusShipping, true},
		{ShippingStatusShipping, ShippingStatusDelivered, true},
		{ShippingStatusDelivered, ShippingStatusReturned, true},
		{ShippingStatusShipping, ShippingStatusCancelled, false},
		{ShippingStatusDelivered, ShippingStatusReceived, false},
		{ShippingStatusCancelled, ShippingStatusPreparing, false},
		{ShippingStatusReceived, ShippingStatusDelivered, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestProduct_Orderable(t *testing.T) {
	assert.True(t, (&Product{Status: ProductStatusOnSale}).Orderable())
	assert.False(t, (&Product{Status: ProductStatusOnSale, Deleted: true}).Orderable())
	assert.False(t, (&Product{Status: ProductStatusSuspended}).Orderable())
	assert.False(t, (&Product{Status: ProductStatusSoldOut}).Orderable())

	var p *Product
	assert.False(t, p.Orderable())
}

func TestPage_Normalize(t *testing.T) {
	assert.Equal(t, Page{Limit: 20, Offset: 0}, Page{Limit: 0, Offset: -5}.Normalize())
	assert.Equal(t, Page{Limit: 20, Offset: 10}, Page{Limit: 500, Offset: 10}.Normalize())
	assert.Equal(t, Page{Limit: 50, Offset: 0}, Page{Limit: 50}.Normalize())
}

func TestCart_TotalQuantity(t *testing.T) {
	c := &Cart{Lines: []CartLine{{Quantity: 2}, {Quantity: 3}}}
	assert.Equal(t, int64(5), c.TotalQuantity())

	var empty *Cart
	assert.Equal(t, int64(0), empty.TotalQuantity())
}
