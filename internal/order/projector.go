package order

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/mmeshcher/ordermart-system/internal/events"
	"github.com/mmeshcher/ordermart-system/internal/metrics"
	"github.com/mmeshcher/ordermart-system/internal/repository"
)

// Consumer описывает подмножество kafka.Reader, нужное проектору.
type Consumer interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// StatusApplier применяет исход платежа к заказу.
type StatusApplier interface {
	ApplyPaymentOutcome(ctx context.Context, orderID int64, paymentStatus string) error
}

// Projector читает события платежей и проецирует их в статусы заказов.
// Смещение фиксируется только после записи статуса в базу, поэтому при
// падении между записью и коммитом событие доставится повторно — абсолютное
// присваивание статуса делает повтор безопасным.
type Projector struct {
	reader  Consumer
	applier StatusApplier
	logger  *zap.Logger
}

// NewProjector создаёт проектор статусов заказов.
func NewProjector(reader Consumer, applier StatusApplier, logger *zap.Logger) *Projector {
	return &Projector{
		reader:  reader,
		applier: applier,
		logger:  logger,
	}
}

// Run читает события до отмены контекста. Транзиентная ошибка применения
// завершает цикл с ошибкой: супервизор перезапустит потребителя, и событие
// будет доставлено снова.
func (p *Projector) Run(ctx context.Context) error {
	for {
		msg, err := p.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		}

		if err := p.handle(ctx, msg); err != nil {
			return err
		}
	}
}

// Close закрывает потребителя.
func (p *Projector) Close() error {
	return p.reader.Close()
}

func (p *Projector) handle(ctx context.Context, msg kafka.Message) error {
	var event events.PaymentOutcomeEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		// Нечитаемое событие не станет читаемым при повторе: фиксируем
		// смещение, чтобы не зациклить партицию.
		p.logger.Error("payment event is not parseable, skipping",
			zap.Int64("offset", msg.Offset),
			zap.Error(err),
		)
		metrics.PaymentEventsProcessed.WithLabelValues("invalid").Inc()
		return p.reader.CommitMessages(ctx, msg)
	}

	err := p.applier.ApplyPaymentOutcome(ctx, event.OrderID, event.Status)
	switch {
	case err == nil:
		metrics.PaymentEventsProcessed.WithLabelValues("applied").Inc()
	case errors.Is(err, repository.ErrOrderNotFound):
		// Событие про несуществующий заказ — постоянный сбой, повтор его
		// не исправит.
		p.logger.Error("payment event references unknown order, skipping",
			zap.String("eventID", event.EventID),
			zap.Int64("orderID", event.OrderID),
		)
		metrics.PaymentEventsProcessed.WithLabelValues("order_not_found").Inc()
	default:
		p.logger.Error("payment event apply failed",
			zap.String("eventID", event.EventID),
			zap.Int64("orderID", event.OrderID),
			zap.Error(err),
		)
		return err
	}

	if err := p.reader.CommitMessages(ctx, msg); err != nil {
		return err
	}

	p.logger.Debug("payment event committed",
		zap.String("eventID", event.EventID),
		zap.Int64("orderID", event.OrderID),
	)
	return nil
}
