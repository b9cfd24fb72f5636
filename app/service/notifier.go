package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/IBM/sarama"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-channel-sync/app/entity"
	"github.com/vibast-solutions/ms-go-channel-sync/app/factory"
)

// Notifier publishes domain events for downstream consumers. Delivery is
// best-effort by policy: failures are logged and never propagated into the
// flow that triggered them.
type Notifier interface {
	PaymentTransition(ctx context.Context, payment *entity.Payment, orderNumber string, oldStatus int32)
	SyncRunFinished(ctx context.Context, log *entity.SyncLog)
}

type KafkaNotifier struct {
	producer sarama.SyncProducer
	topic    string
	logger   logrus.FieldLogger
}

func NewKafkaProducer(brokers []string) (sarama.SyncProducer, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 5

	return sarama.NewSyncProducer(brokers, cfg)
}

func NewKafkaNotifier(producer sarama.SyncProducer, topic string) *KafkaNotifier {
	return &KafkaNotifier{
		producer: producer,
		topic:    topic,
		logger:   factory.NewModuleLogger("notifier"),
	}
}

type paymentTransitionMessage struct {
	Type         string    `json:"type"`
	ProcessorRef string    `json:"processor_ref"`
	OrderNumber  string    `json:"order_number"`
	OldStatus    int32     `json:"old_status"`
	NewStatus    int32     `json:"new_status"`
	AmountCents  int64     `json:"amount_cents"`
	Currency     string    `json:"currency"`
	OccurredAt   time.Time `json:"occurred_at"`
}

type syncRunMessage struct {
	Type             string     `json:"type"`
	RunID            string     `json:"run_id"`
	ChannelID        string     `json:"channel_id"`
	Operation        string     `json:"operation"`
	RecordsProcessed int32      `json:"records_processed"`
	RecordsFailed    int32      `json:"records_failed"`
	Success          bool       `json:"success"`
	StartedAt        time.Time  `json:"started_at"`
	FinishedAt       *time.Time `json:"finished_at"`
}

func (n *KafkaNotifier) PaymentTransition(_ context.Context, payment *entity.Payment, orderNumber string, oldStatus int32) {
	n.publish(payment.ProcessorRef, &paymentTransitionMessage{
		Type:         "payment.transition",
		ProcessorRef: payment.ProcessorRef,
		OrderNumber:  orderNumber,
		OldStatus:    oldStatus,
		NewStatus:    payment.Status,
		AmountCents:  payment.AmountCents,
		Currency:     payment.Currency,
		OccurredAt:   time.Now().UTC(),
	})
}

func (n *KafkaNotifier) SyncRunFinished(_ context.Context, log *entity.SyncLog) {
	n.publish(log.RunID, &syncRunMessage{
		Type:             "sync.run_finished",
		RunID:            log.RunID,
		ChannelID:        log.ChannelID,
		Operation:        log.Operation,
		RecordsProcessed: log.RecordsProcessed,
		RecordsFailed:    log.RecordsFailed,
		Success:          log.Success,
		StartedAt:        log.StartedAt,
		FinishedAt:       log.FinishedAt,
	})
}

func (n *KafkaNotifier) publish(key string, message interface{}) {
	payload, err := json.Marshal(message)
	if err != nil {
		n.logger.WithError(err).Warn("Failed to marshal notification")
		return
	}

	_, _, err = n.producer.SendMessage(&sarama.ProducerMessage{
		Topic: n.topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(payload),
	})
	if err != nil {
		n.logger.WithError(err).WithField("topic", n.topic).Warn("Failed to publish notification")
	}
}

// NoopNotifier is used when no broker is configured.
type NoopNotifier struct{}

func (NoopNotifier) PaymentTransition(context.Context, *entity.Payment, string, int32) {}

func (NoopNotifier) SyncRunFinished(context.Context, *entity.SyncLog) {}
