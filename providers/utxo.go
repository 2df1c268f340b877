package providers

import (
	"math/big"

	bigmi "github.com/lifinance/bigmi-sub000"
)

// UTXOCollector accumulates UTXO pages, dropping duplicate outpoints, until the running
// value reaches MinValue.
type UTXOCollector struct {
	minValue int64
	seen     map[bigmi.Outpoint]struct{}
	utxos    []bigmi.UTXO
	sum      *big.Int
}

func NewUTXOCollector(minValue int64) *UTXOCollector {
	return &UTXOCollector{
		minValue: minValue,
		seen:     make(map[bigmi.Outpoint]struct{}),
		sum:      new(big.Int),
	}
}

// Add appends one page and reports whether collection can stop.
func (c *UTXOCollector) Add(page ...bigmi.UTXO) bool {
	for _, u := range page {
		op := u.Outpoint()
		if _, dup := c.seen[op]; dup {
			continue
		}
		c.seen[op] = struct{}{}
		c.utxos = append(c.utxos, u)
		c.sum.Add(c.sum, big.NewInt(u.Value))
	}
	return c.Satisfied()
}

// Satisfied reports whether MinValue is set and reached.
func (c *UTXOCollector) Satisfied() bool {
	return c.minValue > 0 && c.sum.Cmp(big.NewInt(c.minValue)) >= 0
}

func (c *UTXOCollector) UTXOs() []bigmi.UTXO {
	if c.utxos == nil {
		return []bigmi.UTXO{}
	}
	return c.utxos
}

// CheckBalance returns a terminal insufficient-balance result when balance cannot cover
// minValue. ok is false in that case.
func CheckBalance(address string, balance *big.Int, minValue int64) (res bigmi.Result[[]bigmi.UTXO], ok bool) {
	if minValue <= 0 || balance == nil {
		return res, true
	}
	required := big.NewInt(minValue)
	if balance.Cmp(required) < 0 {
		return bigmi.InsufficientBalance[[]bigmi.UTXO](address, new(big.Int).Set(balance), required), false
	}
	return res, true
}

// Confirmations derives a confirmation count from the chain tip. Unconfirmed heights (<= 0)
// have none.
func Confirmations(tip, height int64) int64 {
	if height <= 0 || tip < height {
		return 0
	}
	return tip - height + 1
}

// PageWindow resolves offset/limit for providers that page by number. page is the zero-based
// page holding Offset and skip is how many leading items of that page precede it.
func PageWindow(p bigmi.TransactionsParams, defaultLimit int) (limit, page, skip int) {
	limit = p.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	offset := max(p.Offset, 0)
	return limit, offset / limit, offset % limit
}
