package model

import (
	"fmt"
	"math"
)

// Money is an amount in nano-USD (1e-9 USD). Integer arithmetic keeps sums
// exact regardless of the order they are added in.
type Money int64

const nanoPerUSD = 1e9

// MoneyFromUSD converts a USD amount, rounding to the nearest nano-USD.
func MoneyFromUSD(usd float64) Money {
	return Money(math.Round(usd * nanoPerUSD))
}

// USD returns the amount in US dollars.
func (m Money) USD() float64 {
	return float64(m) / nanoPerUSD
}

func (m Money) String() string {
	return fmt.Sprintf("$%.6f", m.USD())
}
