package models

import "time"

// Side represents the direction of an order or position.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// Signal is the output of the multi-timeframe rule.
type Signal string

const (
	SignalBuy  Signal = "BUY"
	SignalSell Signal = "SELL"
	SignalHold Signal = "HOLD"
)

// Side maps an actionable signal to an order side. Hold has no side.
func (s Signal) Side() (Side, bool) {
	switch s {
	case SignalBuy:
		return SideBuy, true
	case SignalSell:
		return SideSell, true
	default:
		return "", false
	}
}

// IsActionable reports whether the signal should produce an order.
func (s Signal) IsActionable() bool {
	_, ok := s.Side()
	return ok
}

// OrderAction is the kind of trade request sent to the broker.
type OrderAction string

const (
	OrderActionDeal OrderAction = "DEAL" // Market execution
)

// OrderType is the broker-side order type enumeration.
type OrderType string

const (
	OrderTypeBuy  OrderType = "BUY"
	OrderTypeSell OrderType = "SELL"
)

// OrderTypeFor returns the order type for a side. The mapping is total.
func OrderTypeFor(side Side) OrderType {
	if side == SideSell {
		return OrderTypeSell
	}
	return OrderTypeBuy
}

// FillPolicy is the execution policy for an order.
type FillPolicy string

const (
	FillOrKill        FillPolicy = "FOK"
	ImmediateOrCancel FillPolicy = "IOC"
	FillReturn        FillPolicy = "RETURN"
)

// TimePolicy is the time-in-force of an order.
type TimePolicy string

const (
	GoodTillCancelled TimePolicy = "GTC"
	GoodForDay        TimePolicy = "DAY"
)

// OrderRequest is a fully parameterized order. It is built once and handed
// to the execution collaborator; nothing modifies it afterwards.
type OrderRequest struct {
	ClientID   string      `json:"client_id"`
	Action     OrderAction `json:"action"`
	Symbol     string      `json:"symbol"`
	Side       Side        `json:"side"`
	Type       OrderType   `json:"type"`
	Volume     float64     `json:"volume"`
	Price      float64     `json:"price"`
	StopLoss   float64     `json:"stop_loss"`
	TakeProfit float64     `json:"take_profit"`
	Deviation  int         `json:"deviation"`
	Magic      int64       `json:"magic"`
	Comment    string      `json:"comment"`
	Fill       FillPolicy  `json:"fill"`
	Time       TimePolicy  `json:"time"`
	CreatedAt  time.Time   `json:"created_at"`
}

// OrderResult is the execution collaborator's acknowledgement of a request.
type OrderResult struct {
	OrderID string  `json:"order_id"`
	Status  string  `json:"status"`
	Price   float64 `json:"price"`
	Volume  float64 `json:"volume"`
	Comment string  `json:"comment"`
}

// Position is the last-known open trade for the configured instrument.
type Position struct {
	Symbol     string
	Side       Side
	Volume     float64
	EntryPrice float64
	StopLoss   float64
	TakeProfit float64
	OrderID    string
	OpenedAt   time.Time
}
