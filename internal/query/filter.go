// Package query содержит составление динамических фильтров для выборок.
//
// Фильтр собирается инкрементально: каждый непустой критерий добавляет ровно
// одно условие, условия соединяются конъюнкцией и коммутируют. Пустой фильтр
// не ограничивает выборку. Предикат можно как отрендерить в SQL, так и
// вычислить в памяти, поэтому композиция проверяется без базы данных.
package query

import (
	"fmt"
	"strings"
	"time"

	"github.com/mmeshcher/ordermart-system/internal/model"
)

// Op описывает вид сравнения в условии фильтра.
type Op string

const (
	OpEq  Op = "="
	OpGte Op = ">="
	OpLte Op = "<="
)

// Condition описывает одно условие фильтра: колонка, сравнение, значение.
type Condition struct {
	Column string
	Op     Op
	Value  any
}

// BuildWhere рендерит условия в SQL-фрагмент WHERE с нумерацией аргументов,
// начиная с startArg. Для пустого набора условий возвращает пустую строку.
func BuildWhere(conds []Condition, startArg int) (string, []any) {
	if len(conds) == 0 {
		return "", nil
	}

	parts := make([]string, 0, len(conds))
	args := make([]any, 0, len(conds))
	for i, c := range conds {
		parts = append(parts, fmt.Sprintf("%s %s $%d", c.Column, c.Op, startArg+i))
		args = append(args, c.Value)
	}

	return " WHERE " + strings.Join(parts, " AND "), args
}

// OrderFilter содержит необязательные критерии выборки заказов.
type OrderFilter struct {
	Status        *model.OrderStatus
	Deleted       *bool
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}

// Conditions возвращает условия, соответствующие заданным критериям.
func (f OrderFilter) Conditions() []Condition {
	var conds []Condition

	if f.Status != nil {
		conds = append(conds, Condition{Column: "status", Op: OpEq, Value: string(*f.Status)})
	}
	if f.Deleted != nil {
		conds = append(conds, Condition{Column: "deleted", Op: OpEq, Value: *f.Deleted})
	}
	if f.CreatedAfter != nil {
		conds = append(conds, Condition{Column: "created_at", Op: OpGte, Value: *f.CreatedAfter})
	}
	if f.CreatedBefore != nil {
		conds = append(conds, Condition{Column: "created_at", Op: OpLte, Value: *f.CreatedBefore})
	}

	return conds
}

// Matches вычисляет тот же предикат в памяти.
func (f OrderFilter) Matches(o model.Order) bool {
	if f.Status != nil && o.Status != *f.Status {
		return false
	}
	if f.Deleted != nil && o.Deleted != *f.Deleted {
		return false
	}
	if f.CreatedAfter != nil && o.CreatedAt.Before(*f.CreatedAfter) {
		return false
	}
	if f.CreatedBefore != nil && o.CreatedAt.After(*f.CreatedBefore) {
		return false
	}
	return true
}

// PaymentFilter содержит необязательные критерии выборки платежей.
type PaymentFilter struct {
	UserID  *int64
	OrderID *int64
	Status  *model.PaymentStatus
}

// Conditions возвращает условия, соответствующие заданным критериям.
func (f PaymentFilter) Conditions() []Condition {
	var conds []Condition

	if f.UserID != nil {
		conds = append(conds, Condition{Column: "user_id", Op: OpEq, Value: *f.UserID})
	}
	if f.OrderID != nil {
		conds = append(conds, Condition{Column: "order_id", Op: OpEq, Value: *f.OrderID})
	}
	if f.Status != nil {
		conds = append(conds, Condition{Column: "status", Op: OpEq, Value: string(*f.Status)})
	}

	return conds
}

// Matches вычисляет тот же предикат в памяти.
func (f PaymentFilter) Matches(p model.Payment) bool {
	if f.UserID != nil && p.UserID != *f.UserID {
		return false
	}
	if f.OrderID != nil && p.OrderID != *f.OrderID {
		return false
	}
	if f.Status != nil && p.Status != *f.Status {
		return false
	}
	return true
}

// UserFilter содержит необязательные критерии выборки пользователей.
type UserFilter struct {
	Name    *string
	Surname *string
	Email   *string
	Active  *bool
}

// Conditions возвращает условия, соответствующие заданным критериям.
func (f UserFilter) Conditions() []Condition {
	var conds []Condition

	if f.Name != nil {
		conds = append(conds, Condition{Column: "name", Op: OpEq, Value: *f.Name})
	}
	if f.Surname != nil {
		conds = append(conds, Condition{Column: "surname", Op: OpEq, Value: *f.Surname})
	}
	if f.Email != nil {
		conds = append(conds, Condition{Column: "email", Op: OpEq, Value: *f.Email})
	}
	if f.Active != nil {
		conds = append(conds, Condition{Column: "active", Op: OpEq, Value: *f.Active})
	}

	return conds
}

// Matches проверяет пользователя против фильтра в памяти.
func (f UserFilter) Matches(u model.User) bool {
	if f.Name != nil && u.Name != *f.Name {
		return false
	}
	if f.Surname != nil && u.Surname != *f.Surname {
		return false
	}
	if f.Email != nil && u.Email != *f.Email {
		return false
	}
	if f.Active != nil && u.Active != *f.Active {
		return false
	}
	return true
}

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Page описывает параметры страницы выборки. Нумерация страниц с нуля.
type Page struct {
	Number int
	Size   int
}

// Normalize приводит параметры страницы к допустимым значениям.
func (p Page) Normalize() Page {
	if p.Number < 0 {
		p.Number = 0
	}
	if p.Size <= 0 {
		p.Size = defaultPageSize
	}
	if p.Size > maxPageSize {
		p.Size = maxPageSize
	}
	return p
}

// LimitOffset возвращает значения LIMIT и OFFSET для нормализованной страницы.
func (p Page) LimitOffset() (int, int) {
	p = p.Normalize()
	return p.Size, p.Number * p.Size
}
