package domain

// OrderSide indicates whether this is a buy or sell.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "BUY"
	OrderSideSell OrderSide = "SELL"
)

// OrderType indicates how the order is priced.
type OrderType string

const (
	OrderTypeMarket OrderType = "MARKET"
	OrderTypeLimit  OrderType = "LIMIT"
)

// OrderStatus tracks the order lifecycle. PENDING transitions to one of the
// other states; CANCELLED and FAILED are terminal, but FILLED and
// PARTIALLY_FILLED orders may still be explicitly cancelled by the
// executor's compensation step.
type OrderStatus string

const (
	OrderStatusPending         OrderStatus = "PENDING"
	OrderStatusFilled          OrderStatus = "FILLED"
	OrderStatusPartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	OrderStatusCancelled       OrderStatus = "CANCELLED"
	OrderStatusFailed          OrderStatus = "FAILED"
)

// Live reports whether the status can still be cancelled on the exchange.
func (s OrderStatus) Live() bool {
	return s == OrderStatusPending || s == OrderStatusFilled || s == OrderStatusPartiallyFilled
}

// OrderHandle is an order that has been created (built and signed by the
// gateway) but not yet posted to the exchange.
type OrderHandle struct {
	TokenID string
	Side    OrderSide
	Price   float64
	Size    float64
	Payload string // opaque signed payload owned by the gateway
}

// OrderResult is the outcome of posting a single order. OrderID is empty on
// failure.
type OrderResult struct {
	OrderID    string
	Status     OrderStatus
	FilledSize float64
	AvgPrice   float64
	Err        string
}
