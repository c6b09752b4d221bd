/*
Package fixedn converts integer token amounts (in the smallest units) to and
from decimal strings given the number of token decimals.
*/
package fixedn

import (
	"errors"
	"math/big"
	"strings"
)

// MaxPrecision is the maximum number of decimals supported.
const MaxPrecision = 30

// ErrInvalidFormat is returned when decimal string can't be parsed.
var ErrInvalidFormat = errors.New("invalid decimal format")

var ten = big.NewInt(10)

func pow10(n int) *big.Int {
	return new(big.Int).Exp(ten, big.NewInt(int64(n)), nil)
}

// ToString converts an amount in the smallest units to a decimal string with
// the given precision. Trailing zeros of the fractional part are dropped.
func ToString(v *big.Int, precision int) string {
	if v == nil {
		return "0"
	}
	if precision <= 0 {
		return v.String()
	}
	buf := new(strings.Builder)
	val := new(big.Int).Set(v)
	if val.Sign() < 0 {
		buf.WriteRune('-')
		val.Neg(val)
	}
	q, r := new(big.Int).QuoRem(val, pow10(precision), new(big.Int))
	buf.WriteString(q.String())
	if r.Sign() > 0 {
		buf.WriteRune('.')
		str := r.String()
		for i := len(str); i < precision; i++ {
			buf.WriteRune('0')
		}
		buf.WriteString(strings.TrimRight(str, "0"))
	}
	return buf.String()
}

// FromString parses s which must be a decimal number with no more than
// precision digits after the point and returns it in the smallest units.
func FromString(s string, precision int) (*big.Int, error) {
	if precision < 0 || precision > MaxPrecision {
		return nil, errors.New("precision is out of range")
	}
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	ip, fp, hasPoint := strings.Cut(s, ".")
	if ip == "" || (hasPoint && fp == "") || len(fp) > precision {
		return nil, ErrInvalidFormat
	}
	for _, part := range []string{ip, fp} {
		for _, c := range part {
			if c < '0' || c > '9' {
				return nil, ErrInvalidFormat
			}
		}
	}
	res, _ := new(big.Int).SetString(ip+fp+strings.Repeat("0", precision-len(fp)), 10)
	if neg {
		res.Neg(res)
	}
	return res, nil
}
