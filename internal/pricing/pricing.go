// Package pricing содержит расчёт стоимости заказа.
package pricing

import "github.com/shopspring/decimal"

// Line описывает одну позицию для расчёта: цена за единицу и количество.
type Line struct {
	UnitPrice decimal.Decimal
	Quantity  int32
}

// Subtotal возвращает точный подытог позиции без округления.
func Subtotal(line Line) decimal.Decimal {
	return line.UnitPrice.Mul(decimal.NewFromInt32(line.Quantity))
}

// ComputeTotal суммирует подытоги позиций точной десятичной арифметикой
// и округляет только итоговую сумму до двух знаков (half-up).
// Промежуточные подытоги не округляются, чтобы не накапливать погрешность.
// Количество <= 0 отсекается валидацией выше по стеку.
func ComputeTotal(lines []Line) decimal.Decimal {
	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(Subtotal(line))
	}
	return total.Round(2)
}
