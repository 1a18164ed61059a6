package query

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/ordermart-system/internal/model"
)

func ptr[T any](v T) *T { return &v }

func TestOrderFilterConditions(t *testing.T) {
	after := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	before := time.Date(2025, 12, 31, 23, 59, 59, 0, time.UTC)

	tests := []struct {
		name       string
		filter     OrderFilter
		wantNumber int
	}{
		{name: "empty", filter: OrderFilter{}, wantNumber: 0},
		{
			name:       "status only",
			filter:     OrderFilter{Status: ptr(model.OrderStatusPending)},
			wantNumber: 1,
		},
		{
			name: "all criteria",
			filter: OrderFilter{
				Status:        ptr(model.OrderStatusConfirmed),
				Deleted:       ptr(false),
				CreatedAfter:  &after,
				CreatedBefore: &before,
			},
			wantNumber: 4,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conds := tt.filter.Conditions()
			assert.Len(t, conds, tt.wantNumber)
		})
	}
}

func TestBuildWhere(t *testing.T) {
	filter := OrderFilter{
		Status:  ptr(model.OrderStatusPending),
		Deleted: ptr(false),
	}

	where, args := BuildWhere(filter.Conditions(), 1)
	require.Equal(t, " WHERE status = $1 AND deleted = $2", where)
	require.Equal(t, []any{string(model.OrderStatusPending), false}, args)

	// Нумерация аргументов продолжается с заданной позиции.
	where, args = BuildWhere(filter.Conditions(), 3)
	require.Equal(t, " WHERE status = $3 AND deleted = $4", where)
	require.Len(t, args, 2)
}

func TestBuildWhereEmpty(t *testing.T) {
	where, args := BuildWhere(OrderFilter{}.Conditions(), 1)
	assert.Empty(t, where)
	assert.Nil(t, args)
}

func TestOrderFilterMatches(t *testing.T) {
	createdAt := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	order := model.Order{
		Status:    model.OrderStatusPending,
		Deleted:   false,
		CreatedAt: createdAt,
	}

	// Пустой фильтр пропускает любую запись.
	assert.True(t, OrderFilter{}.Matches(order))

	assert.True(t, OrderFilter{Status: ptr(model.OrderStatusPending)}.Matches(order))
	assert.False(t, OrderFilter{Status: ptr(model.OrderStatusCanceled)}.Matches(order))

	assert.True(t, OrderFilter{Deleted: ptr(false)}.Matches(order))
	assert.False(t, OrderFilter{Deleted: ptr(true)}.Matches(order))

	after := createdAt.Add(-time.Hour)
	before := createdAt.Add(time.Hour)
	assert.True(t, OrderFilter{CreatedAfter: &after, CreatedBefore: &before}.Matches(order))

	tooLate := createdAt.Add(time.Minute)
	assert.False(t, OrderFilter{CreatedAfter: &tooLate}.Matches(order))
}

func TestOrderFilterConjunction(t *testing.T) {
	createdAt := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	order := model.Order{
		Status:    model.OrderStatusPending,
		Deleted:   true,
		CreatedAt: createdAt,
	}

	// Оба критерия должны совпасть: статус подходит, признак удаления нет.
	filter := OrderFilter{
		Status:  ptr(model.OrderStatusPending),
		Deleted: ptr(false),
	}
	assert.False(t, filter.Matches(order))
}

func TestPaymentFilterMatches(t *testing.T) {
	payment := model.Payment{OrderID: 42, UserID: 7, Status: model.PaymentStatusSuccess}

	assert.True(t, PaymentFilter{}.Matches(payment))
	assert.True(t, PaymentFilter{OrderID: ptr(int64(42)), Status: ptr(model.PaymentStatusSuccess)}.Matches(payment))
	assert.False(t, PaymentFilter{UserID: ptr(int64(8))}.Matches(payment))
}

func TestPageNormalize(t *testing.T) {
	tests := []struct {
		name       string
		page       Page
		wantLimit  int
		wantOffset int
	}{
		{name: "defaults", page: Page{}, wantLimit: 20, wantOffset: 0},
		{name: "negative page", page: Page{Number: -3, Size: 10}, wantLimit: 10, wantOffset: 0},
		{name: "second page", page: Page{Number: 2, Size: 15}, wantLimit: 15, wantOffset: 30},
		{name: "size capped", page: Page{Number: 0, Size: 1000}, wantLimit: 100, wantOffset: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			limit, offset := tt.page.LimitOffset()
			assert.Equal(t, tt.wantLimit, limit)
			assert.Equal(t, tt.wantOffset, offset)
		})
	}
}
