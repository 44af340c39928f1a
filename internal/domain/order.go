package domain

import "time"

// OrderRequest is an admitted order, ready for execution.
type OrderRequest struct {
	Symbol   string
	Side     OrderSide
	Quantity float64

	// ClientOrderID is assigned once by the execution client and reused on
	// every retry, so a duplicate network send cannot double-fill.
	ClientOrderID string
}

// Fill holds the confirmed execution details of an order.
type Fill struct {
	OrderID  int64 // Exchange-assigned order ID
	Price    float64
	Quantity float64
	Time     time.Time
}

// OrderResult is the terminal outcome of executing an order request:
// either a fill or a typed failure.
type OrderResult struct {
	Request OrderRequest
	Fill    *Fill
	Err     error
}

// Filled reports whether the order produced a confirmed fill.
func (r OrderResult) Filled() bool {
	return r.Err == nil && r.Fill != nil
}
