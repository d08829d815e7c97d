package domain

import "github.com/shopspring/decimal"

// Wins reports whether a contract in direction d wins when price moves from entry to exit.
// An unchanged price loses.
func (d Direction) Wins(entry, exit float64) bool {
	switch d {
	case DirectionUp:
		return exit > entry
	case DirectionDown:
		return exit < entry
	}
	return false
}

// BinaryProfit settles a binary contract: a win pays stake*payoutRate, a loss forfeits the stake.
// The result is rounded to cents.
func BinaryProfit(d Direction, stake, entry, exit, payoutRate float64) float64 {
	s := decimal.NewFromFloat(stake)
	if d.Wins(entry, exit) {
		return s.Mul(decimal.NewFromFloat(payoutRate)).Round(2).InexactFloat64()
	}
	return s.Neg().Round(2).InexactFloat64()
}
