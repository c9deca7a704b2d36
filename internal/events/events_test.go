package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"perfbot/internal/logger"
	"perfbot/internal/model"
	"perfbot/internal/service"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/shopspring/decimal"
)

func TestPublishOrderCreated(t *testing.T) {
	mock := mocks.NewSyncProducer(t, NewProducerConfig())
	defer mock.Close()

	var sent model.OrderCreatedEvent
	mock.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		return json.Unmarshal(val, &sent)
	})

	producer := NewOrderEventProducerFromClient(mock, "perfbot.orders.created")
	err := producer.PublishOrderCreated(context.Background(), model.OrderCreatedEvent{
		OrderID:        "PB123456",
		UserID:         "u1",
		TotalAmount:    decimal.RequireFromString("21.98"),
		AnalysisMethod: model.MethodKeyword,
		CreatedAt:      time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("PublishOrderCreated() error = %v", err)
	}
	if sent.OrderID != "PB123456" || !sent.TotalAmount.Equal(decimal.RequireFromString("21.98")) {
		t.Errorf("sent event = %+v", sent)
	}
}

func TestPublishOrderCreated_BrokerError(t *testing.T) {
	mock := mocks.NewSyncProducer(t, NewProducerConfig())
	defer mock.Close()
	mock.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	producer := NewOrderEventProducerFromClient(mock, "orders")
	err := producer.PublishOrderCreated(context.Background(), model.OrderCreatedEvent{OrderID: "PB1"})
	if !errors.Is(err, sarama.ErrOutOfBrokers) {
		t.Errorf("PublishOrderCreated() error = %v, want ErrOutOfBrokers", err)
	}
}

func TestPublishOrderCreated_CancelledContext(t *testing.T) {
	mock := mocks.NewSyncProducer(t, NewProducerConfig())
	defer mock.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	producer := NewOrderEventProducerFromClient(mock, "orders")
	if err := producer.PublishOrderCreated(ctx, model.OrderCreatedEvent{OrderID: "PB1"}); err == nil {
		t.Error("expected an error for a cancelled context")
	}
}

func TestDecodeStatusEvent(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    model.OrderStatus
		wantErr bool
	}{
		{name: "valid", payload: `{"order_id":"PB1","status":"preparing"}`, want: model.StatusPreparing},
		{name: "with driver", payload: `{"order_id":"PB1","status":"out_for_delivery","driver_name":"Sam"}`, want: model.StatusOutForDelivery},
		{name: "not json", payload: `status=ready`, wantErr: true},
		{name: "missing order", payload: `{"status":"ready"}`, wantErr: true},
		{name: "missing status", payload: `{"order_id":"PB1"}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := DecodeStatusEvent([]byte(tt.payload))
			if (err != nil) != tt.wantErr {
				t.Fatalf("DecodeStatusEvent() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && ev.Status != tt.want {
				t.Errorf("status = %s, want %s", ev.Status, tt.want)
			}
		})
	}
}

type recordingApplier struct {
	mu     sync.Mutex
	events []model.StatusEvent
	err    error
}

func (r *recordingApplier) ApplyStatusEvent(_ context.Context, ev model.StatusEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return r.err
}

func TestHandleMessage(t *testing.T) {
	tests := []struct {
		name        string
		payload     string
		applyErr    error
		wantApplied bool
		wantErr     bool
	}{
		{name: "applied", payload: `{"order_id":"PB1","status":"preparing"}`, wantApplied: true},
		{name: "malformed is skipped", payload: `garbage`},
		{name: "illegal transition is skipped", payload: `{"order_id":"PB1","status":"delivered"}`,
			applyErr: fmt.Errorf("%w: received -> delivered", service.ErrIllegalTransition), wantApplied: true},
		{name: "unknown order is skipped", payload: `{"order_id":"PB9","status":"preparing"}`,
			applyErr: service.ErrOrderNotFound, wantApplied: true},
		{name: "store failure is retried", payload: `{"order_id":"PB1","status":"preparing"}`,
			applyErr: errors.New("connection refused"), wantApplied: true, wantErr: true},
		{name: "shutdown is retried", payload: `{"order_id":"PB1","status":"preparing"}`,
			applyErr: context.Canceled, wantApplied: true, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			applier := &recordingApplier{err: tt.applyErr}
			c := &StatusConsumer{topic: "status", applier: applier, log: logger.Nop()}

			err := c.handleMessage(context.Background(), &sarama.ConsumerMessage{Value: []byte(tt.payload)})
			if (err != nil) != tt.wantErr {
				t.Errorf("handleMessage() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got := len(applier.events) == 1; got != tt.wantApplied {
				t.Errorf("applied = %v, want %v", got, tt.wantApplied)
			}
		})
	}
}

type fakeSession struct {
	ctx    context.Context
	mu     sync.Mutex
	marked []int64
}

func (s *fakeSession) Claims() map[string][]int32               { return nil }
func (s *fakeSession) MemberID() string                         { return "member-1" }
func (s *fakeSession) GenerationID() int32                      { return 1 }
func (s *fakeSession) MarkOffset(string, int32, int64, string)  {}
func (s *fakeSession) Commit()                                  {}
func (s *fakeSession) ResetOffset(string, int32, int64, string) {}
func (s *fakeSession) Context() context.Context                 { return s.ctx }
func (s *fakeSession) MarkMessage(msg *sarama.ConsumerMessage, _ string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.marked = append(s.marked, msg.Offset)
}

type fakeClaim struct {
	messages chan *sarama.ConsumerMessage
}

func (c *fakeClaim) Topic() string                            { return "status" }
func (c *fakeClaim) Partition() int32                         { return 0 }
func (c *fakeClaim) InitialOffset() int64                     { return 0 }
func (c *fakeClaim) HighWaterMarkOffset() int64               { return 0 }
func (c *fakeClaim) Messages() <-chan *sarama.ConsumerMessage { return c.messages }

// failingApplier fails every event of one order
type failingApplier struct {
	orderID string
	err     error
}

func (a failingApplier) ApplyStatusEvent(_ context.Context, ev model.StatusEvent) error {
	if ev.OrderID == a.orderID {
		return a.err
	}
	return nil
}

func TestConsumeClaim_MarksOnlyHandledMessages(t *testing.T) {
	claim := &fakeClaim{messages: make(chan *sarama.ConsumerMessage, 4)}
	claim.messages <- &sarama.ConsumerMessage{Offset: 40, Value: []byte(`{"order_id":"PB1","status":"preparing"}`)}
	claim.messages <- &sarama.ConsumerMessage{Offset: 41, Value: []byte(`not json`)}
	claim.messages <- &sarama.ConsumerMessage{Offset: 42, Value: []byte(`{"order_id":"PB2","status":"preparing"}`)}
	claim.messages <- &sarama.ConsumerMessage{Offset: 43, Value: []byte(`{"order_id":"PB1","status":"cooking"}`)}
	close(claim.messages)

	sess := &fakeSession{ctx: context.Background()}
	c := &StatusConsumer{
		topic:   "status",
		applier: failingApplier{orderID: "PB2", err: errors.New("connection refused")},
		log:     logger.Nop(),
	}

	if err := c.ConsumeClaim(sess, claim); err == nil {
		t.Fatal("ConsumeClaim() should stop on a transient failure")
	}
	if len(sess.marked) != 2 || sess.marked[0] != 40 || sess.marked[1] != 41 {
		t.Errorf("marked offsets = %v, want [40 41]", sess.marked)
	}
}

func TestConsumeClaim_DrainsCleanly(t *testing.T) {
	claim := &fakeClaim{messages: make(chan *sarama.ConsumerMessage, 2)}
	claim.messages <- &sarama.ConsumerMessage{Offset: 7, Value: []byte(`{"order_id":"PB1","status":"preparing"}`)}
	claim.messages <- &sarama.ConsumerMessage{Offset: 8, Value: []byte(`{"order_id":"PB9","status":"preparing"}`)}
	close(claim.messages)

	sess := &fakeSession{ctx: context.Background()}
	c := &StatusConsumer{
		topic:   "status",
		applier: failingApplier{orderID: "PB9", err: service.ErrOrderNotFound},
		log:     logger.Nop(),
	}

	if err := c.ConsumeClaim(sess, claim); err != nil {
		t.Fatalf("ConsumeClaim() error = %v", err)
	}
	if len(sess.marked) != 2 {
		t.Errorf("marked offsets = %v, want both", sess.marked)
	}
}
