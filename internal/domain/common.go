package domain

// Direction is the price outcome a binary contract pays out on.
type Direction string

const (
	DirectionUp   Direction = "UP"   // CALL
	DirectionDown Direction = "DOWN" // PUT
)

// Valid reports whether d is one of the tradable directions.
func (d Direction) Valid() bool {
	return d == DirectionUp || d == DirectionDown
}

// Opposite returns the other direction.
func (d Direction) Opposite() Direction {
	if d == DirectionUp {
		return DirectionDown
	}
	return DirectionUp
}

// TradeStatus represents the lifecycle state of a trade.
type TradeStatus string

const (
	TradeActive    TradeStatus = "active"
	TradeClosed    TradeStatus = "closed"
	TradeCancelled TradeStatus = "cancelled"
	TradeTimedOut  TradeStatus = "timed_out"
)

// Terminal reports whether no further transition is allowed from s.
func (s TradeStatus) Terminal() bool {
	return s == TradeClosed || s == TradeCancelled || s == TradeTimedOut
}

// TradeResult is the settled outcome of a trade.
type TradeResult string

const (
	ResultNone      TradeResult = ""
	ResultWin       TradeResult = "win"
	ResultLoss      TradeResult = "loss"
	ResultCancelled TradeResult = "cancelled"
)

// ResultForProfit maps a realized profit to a result. Only strictly positive profit wins.
func ResultForProfit(profit float64) TradeResult {
	if profit > 0 {
		return ResultWin
	}
	return ResultLoss
}
