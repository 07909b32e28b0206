package mode

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// ErrUnknownCurrency is returned for a currency code missing from Rates.
var ErrUnknownCurrency = errors.New("unknown currency")

// Rates are units of each currency per US dollar.
var Rates = map[string]float64{
	"USD": 1,
	"EUR": 0.92,
	"GBP": 0.79,
	"JPY": 149.5,
	"AUD": 1.52,
	"CAD": 1.36,
	"CHF": 0.88,
	"CNY": 7.24,
	"INR": 83.12,
	"MXN": 17.05,
}

// Currencies returns the supported currency codes in alphabetical order.
func Currencies() []string {
	codes := make([]string, 0, len(Rates))
	for c := range Rates {
		codes = append(codes, c)
	}
	sort.Strings(codes)
	return codes
}

// Convert converts amount between two currencies through the USD rate table.
func Convert(amount float64, from, to string) (float64, error) {
	fromRate, ok := Rates[from]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownCurrency, from)
	}
	toRate, ok := Rates[to]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownCurrency, to)
	}
	return amount / fromRate * toRate, nil
}

// Converter is the decoy surface's state: the typed amount and the pair.
// Amount is kept as typed so it can be compared against the PIN verbatim.
type Converter struct {
	mu     sync.Mutex
	amount string
	from   string
	to     string
}

// NewConverter starts at 100 USD to EUR.
func NewConverter() *Converter {
	return &Converter{amount: "100", from: "USD", to: "EUR"}
}

// SetAmount stores the amount field exactly as typed.
func (c *Converter) SetAmount(amount string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.amount = amount
}

// Amount returns the amount field as typed.
func (c *Converter) Amount() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.amount
}

// SetPair selects the currencies.
func (c *Converter) SetPair(from, to string) error {
	from, to = strings.ToUpper(from), strings.ToUpper(to)
	if _, ok := Rates[from]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownCurrency, from)
	}
	if _, ok := Rates[to]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownCurrency, to)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.from, c.to = from, to
	return nil
}

// Pair returns the selected currencies.
func (c *Converter) Pair() (from, to string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.from, c.to
}

// Result converts the current amount. ok is false when the amount is not a number.
func (c *Converter) Result() (float64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.resultLocked()
}

func (c *Converter) resultLocked() (float64, bool) {
	n, err := strconv.ParseFloat(strings.TrimSpace(c.amount), 64)
	if err != nil {
		return 0, false
	}
	r, err := Convert(n, c.from, c.to)
	if err != nil {
		return 0, false
	}
	return r, true
}

// Swap exchanges the currencies and, when there is a result, replaces the
// amount with it rounded to two decimals.
func (c *Converter) Swap() {
	c.mu.Lock()
	defer c.mu.Unlock()

	result, ok := c.resultLocked()
	c.from, c.to = c.to, c.from
	if ok {
		c.amount = strconv.FormatFloat(result, 'f', 2, 64)
	}
}
