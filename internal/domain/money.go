package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// minorUnitsExp — две цифры после запятой.
const minorUnitsExp = -2

// Money хранит сумму в минимальных денежных единицах (центах), без плавающей точки.
type Money int64

// ParseMoney разбирает десятичную строку вида "19.99".
// Больше двух знаков после запятой не допускается, чтобы не терять точность молча.
func ParseMoney(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid money value %q", ErrBadRequest, s)
	}
	scaled := d.Shift(-minorUnitsExp)
	if !scaled.Equal(scaled.Truncate(0)) {
		return 0, fmt.Errorf("%w: money value %q has more than 2 decimal places", ErrBadRequest, s)
	}
	return Money(scaled.IntPart()), nil
}

// MustMoney — вариант ParseMoney для констант и тестов.
func MustMoney(s string) Money {
	m, err := ParseMoney(s)
	if err != nil {
		panic(err)
	}
	return m
}

// Minor возвращает сумму в центах.
func (m Money) Minor() int64 { return int64(m) }

// Times умножает цену за единицу на количество.
func (m Money) Times(qty int) Money {
	return m * Money(qty)
}

// Decimal возвращает значение как decimal.Decimal.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(int64(m), minorUnitsExp)
}

// String форматирует сумму с двумя знаками: "59.97".
func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}

// MarshalJSON пишет сумму числом, а не строкой: {"unitPrice":19.99}.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalJSON принимает как число, так и строку в кавычках.
func (m *Money) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	parsed, err := ParseMoney(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
