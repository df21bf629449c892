package events

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const (
	TopicOrderCreated       = "order.created"
	TopicFundingGoalReached = "funding.goal.reached"

	EventOrderCreated       = "OrderCreated"
	EventFundingGoalReached = "FundingGoalReached"
)

type Envelope struct {
	EventID      string          `json:"event_id"`
	EventType    string          `json:"event_type"`
	EventVersion int             `json:"event_version"`
	OccurredAt   time.Time       `json:"occurred_at"`
	Producer     string          `json:"producer"`
	Payload      json.RawMessage `json:"payload"`
}

type OrderCreatedPayload struct {
	OrderID     int64  `json:"order_id"`
	UserID      int64  `json:"user_id"`
	Status      string `json:"status"`
	TotalAmount int64  `json:"total_amount"`
	Settlement  string `json:"settlement"` // "immediate" | "scheduled"
}

type FundingGoalReachedPayload struct {
	ProductID     int64 `json:"product_id"`
	GoalAmount    int64 `json:"goal_amount"`
	CurrentAmount int64 `json:"current_amount"`
	Supporters    int64 `json:"supporters"`
}

// fire-and-forgetのイベント発行。書き込み失敗はログのみ。
type Producer struct {
	w   *kafka.Writer
	log *zap.Logger
}

func NewProducer(brokers []string, log *zap.Logger) *Producer {
	return &Producer{
		w: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			Async:        true,
		},
		log: log,
	}
}

func (p *Producer) OrderCreated(orderID, userID, totalAmount int64, status, settlement string) {
	payload := OrderCreatedPayload{
		OrderID:     orderID,
		UserID:      userID,
		Status:      status,
		TotalAmount: totalAmount,
		Settlement:  settlement,
	}
	p.publish(TopicOrderCreated, strconv.FormatInt(orderID, 10), EventOrderCreated, payload)
}

func (p *Producer) FundingGoalReached(productID, goalAmount, currentAmount, supporters int64) {
	payload := FundingGoalReachedPayload{
		ProductID:     productID,
		GoalAmount:    goalAmount,
		CurrentAmount: currentAmount,
		Supporters:    supporters,
	}
	p.publish(TopicFundingGoalReached, strconv.FormatInt(productID, 10), EventFundingGoalReached, payload)
}

func (p *Producer) publish(topic, key, eventType string, payload any) {
	b, err := json.Marshal(payload)
	if err != nil {
		p.log.Warn("event payload marshal failed", zap.String("event", eventType), zap.Error(err))
		return
	}
	env := Envelope{
		EventID:      uuid.NewString(),
		EventType:    eventType,
		EventVersion: 1,
		OccurredAt:   time.Now(),
		Producer:     "order-api",
		Payload:      b,
	}
	v, err := json.Marshal(env)
	if err != nil {
		p.log.Warn("event envelope marshal failed", zap.String("event", eventType), zap.Error(err))
		return
	}

	err = p.w.WriteMessages(context.Background(), kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: v,
		Time:  time.Now(),
	})
	if err != nil {
		p.log.Warn("event publish failed", zap.String("topic", topic), zap.Error(err))
	}
}

func (p *Producer) Close() error {
	return p.w.Close()
}
