// Package units converts between provider amount encodings and satoshis.
package units

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// SatsPerBTC is the number of satoshis in one bitcoin.
const SatsPerBTC = 100_000_000

var satsPerBTC = decimal.NewFromInt(SatsPerBTC)

// ParseSats parses a base-10 integer satoshi amount. Negative or fractional amounts are rejected.
func ParseSats(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid satoshi amount %q", s)
	}
	if v.Sign() < 0 {
		return nil, fmt.Errorf("negative satoshi amount %q", s)
	}
	return v, nil
}

// SatsFromJSON accepts a satoshi amount encoded either as a JSON number or a JSON string.
func SatsFromJSON(raw json.RawMessage) (*big.Int, error) {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return new(big.Int), nil
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(raw, &str); err != nil {
			return nil, err
		}
		s = str
	}
	return ParseSats(s)
}

// BTCToSats converts a BTC-denominated decimal string ("0.00012345") to satoshis.
// Amounts with more than 8 decimal places are rejected.
func BTCToSats(btc string) (*big.Int, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(btc))
	if err != nil {
		return nil, fmt.Errorf("invalid btc amount %q: %w", btc, err)
	}
	sats := d.Mul(satsPerBTC)
	if !sats.IsInteger() {
		return nil, fmt.Errorf("btc amount %s has sub-satoshi precision", d.String())
	}
	if sats.IsNegative() {
		return nil, fmt.Errorf("negative btc amount %s", d.String())
	}
	return sats.BigInt(), nil
}

// FloatBTCToSats converts the float BTC values bitcoind puts in JSON results.
func FloatBTCToSats(btc float64) int64 {
	return decimal.NewFromFloat(btc).Mul(satsPerBTC).Round(0).IntPart()
}

// SatsToBTC renders satoshis as a BTC decimal string with 8 fractional digits.
func SatsToBTC(sats *big.Int) string {
	if sats == nil {
		return "0.00000000"
	}
	return decimal.NewFromBigInt(sats, 0).Div(satsPerBTC).StringFixed(8)
}
