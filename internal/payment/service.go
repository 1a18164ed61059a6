package payment

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/ordermart-system/internal/events"
	"github.com/mmeshcher/ordermart-system/internal/model"
	"github.com/mmeshcher/ordermart-system/internal/query"
)

// ErrInvalidAmount возвращается на неположительную сумму платежа.
var ErrInvalidAmount = errors.New("payment amount must be positive")

// Repository описывает хранилище платежей.
type Repository interface {
	Close() error
	CreatePayment(ctx context.Context, payment *model.Payment) error
	ListPayments(ctx context.Context, filter query.PaymentFilter, page query.Page) ([]model.Payment, int64, error)
	TotalAmount(ctx context.Context, start, end time.Time, userID *int64) (decimal.Decimal, error)
}

// Publisher доставляет событие исхода платежа.
type Publisher interface {
	Publish(ctx context.Context, event events.PaymentOutcomeEvent) error
}

// KafkaPublisher публикует события в топик платежей. Ключом служит
// идентификатор заказа: события одного заказа попадают в одну партицию.
type KafkaPublisher struct {
	writer *kafka.Writer
}

// NewKafkaPublisher создаёт издатель поверх writer.
func NewKafkaPublisher(writer *kafka.Writer) *KafkaPublisher {
	return &KafkaPublisher{writer: writer}
}

// Publish отправляет событие в Kafka.
func (p *KafkaPublisher) Publish(ctx context.Context, event events.PaymentOutcomeEvent) error {
	return events.PublishJSON(ctx, p.writer, strconv.FormatInt(event.OrderID, 10), event)
}

// Close закрывает writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// Service содержит бизнес-логику payment-service.
type Service struct {
	repo      Repository
	source    OutcomeSource
	publisher Publisher
	logger    *zap.Logger
}

// NewService создаёт сервис платежей.
func NewService(repo Repository, source OutcomeSource, publisher Publisher, logger *zap.Logger) *Service {
	return &Service{
		repo:      repo,
		source:    source,
		publisher: publisher,
		logger:    logger,
	}
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// Create проводит платёж: исход берётся у генератора, запись фиксируется
// в базе, и только после этого событие уходит в Kafka. Сбой публикации
// не откатывает платёж: он логируется, заказ останется в PENDING до
// ручного вмешательства.
func (s *Service) Create(ctx context.Context, orderID, userID int64, amount decimal.Decimal) (*model.Payment, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	outcome, err := s.source.Outcome(ctx)
	if err != nil {
		return nil, err
	}

	payment := &model.Payment{
		OrderID: orderID,
		UserID:  userID,
		Status:  outcome,
		Amount:  amount,
	}
	if err := s.repo.CreatePayment(ctx, payment); err != nil {
		return nil, err
	}

	event := events.NewPaymentOutcomeEvent(orderID, string(outcome))
	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, event); err != nil {
			s.logger.Error("payment event publish failed",
				zap.String("eventID", event.EventID),
				zap.Int64("orderID", orderID),
				zap.Error(err),
			)
		}
	}

	s.logger.Info("payment processed",
		zap.Int64("paymentID", payment.ID),
		zap.Int64("orderID", orderID),
		zap.String("status", string(outcome)),
	)
	return payment, nil
}

// List возвращает страницу платежей по фильтру.
func (s *Service) List(ctx context.Context, filter query.PaymentFilter, page query.Page) ([]model.Payment, int64, error) {
	return s.repo.ListPayments(ctx, filter, page)
}

// Total возвращает сумму успешных платежей за период, опционально
// по одному пользователю.
func (s *Service) Total(ctx context.Context, start, end time.Time, userID *int64) (decimal.Decimal, error) {
	return s.repo.TotalAmount(ctx, start, end, userID)
}
