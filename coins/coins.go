package coins

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
)

// ErrInvalidAmount - amount is negative, not a number or does not fit 120 bits (VarUInteger 16)
var ErrInvalidAmount = errors.New("invalid amount")

const TONDecimals = 9

// max amount is 15 bytes
const maxBytes = 15

type Coins struct {
	decimals int
	val      *big.Int
}

var Zero = MustFromTON("0")

func (g Coins) String() string {
	if g.val == nil {
		return "0"
	}

	a := g.val.String()
	if a == "0" {
		// process 0 faster and simpler
		return a
	}

	splitter := len(a) - g.decimals
	if splitter <= 0 {
		a = "0." + strings.Repeat("0", g.decimals-len(a)) + a
	} else {
		// set . between lo and hi
		a = a[:splitter] + "." + a[splitter:]
	}

	// cut last zeroes
	for i := len(a) - 1; i >= 0; i-- {
		if a[i] == '.' {
			a = a[:i]
			break
		}
		if a[i] != '0' {
			a = a[:i+1]
			break
		}
	}

	return a
}

// Nano - amount in the smallest units, caller must not modify it
func (g Coins) Nano() *big.Int {
	if g.val == nil {
		return big.NewInt(0)
	}
	return g.val
}

func (g Coins) IsZero() bool {
	return g.val == nil || g.val.Sign() == 0
}

func MustFromTON(val string) Coins {
	v, err := FromTON(val)
	if err != nil {
		panic(err)
	}
	return v
}

func FromNano(val *big.Int, decimals int) (Coins, error) {
	if val == nil {
		return Coins{}, fmt.Errorf("%w: nil value", ErrInvalidAmount)
	}
	if err := checkRange(val); err != nil {
		return Coins{}, err
	}

	return Coins{
		decimals: decimals,
		val:      new(big.Int).Set(val),
	}, nil
}

func FromNanoTON(val *big.Int) (Coins, error) {
	return FromNano(val, TONDecimals)
}

func FromNanoTONU(val uint64) Coins {
	return Coins{
		decimals: TONDecimals,
		val:      new(big.Int).SetUint64(val),
	}
}

// ParseNano - parses integer amount in the smallest units, like "10000000"
func ParseNano(val string) (Coins, error) {
	if !isDigits(val) {
		return Coins{}, fmt.Errorf("%w: %q is not a non-negative integer", ErrInvalidAmount, val)
	}

	v, ok := new(big.Int).SetString(val, 10)
	if !ok {
		return Coins{}, fmt.Errorf("%w: %q is not a number", ErrInvalidAmount, val)
	}
	return FromNano(v, TONDecimals)
}

func FromTON(val string) (Coins, error) {
	return FromDecimal(val, TONDecimals)
}

func FromDecimal(val string, decimals int) (Coins, error) {
	if decimals < 0 || decimals >= 128 {
		return Coins{}, fmt.Errorf("%w: invalid decimals %d", ErrInvalidAmount, decimals)
	}
	errInvalid := fmt.Errorf("%w: invalid string %q", ErrInvalidAmount, val)

	s := strings.SplitN(val, ".", 2)

	if !isDigits(s[0]) {
		return Coins{}, errInvalid
	}

	hi, ok := new(big.Int).SetString(s[0], 10)
	if !ok {
		return Coins{}, errInvalid
	}

	hi = hi.Mul(hi, new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil))

	if len(s) == 2 {
		loStr := s[1]
		if !isDigits(loStr) {
			return Coins{}, errInvalid
		}

		// lo can have max {decimals} digits
		if len(loStr) > decimals {
			loStr = loStr[:decimals]
		}

		if loStr != "" {
			lo, ok := new(big.Int).SetString(loStr, 10)
			if !ok {
				return Coins{}, errInvalid
			}

			lo = lo.Mul(lo, new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals-len(loStr))), nil))
			hi = hi.Add(hi, lo)
		}
	}

	if err := checkRange(hi); err != nil {
		return Coins{}, err
	}

	return Coins{
		decimals: decimals,
		val:      hi,
	}, nil
}

func checkRange(val *big.Int) error {
	if val.Sign() < 0 {
		return fmt.Errorf("%w: negative value", ErrInvalidAmount)
	}
	if (val.BitLen()+7)>>3 > maxBytes {
		return fmt.Errorf("%w: too big number for coins", ErrInvalidAmount)
	}
	return nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func (g Coins) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf("%q", g.Nano().String())), nil
}
