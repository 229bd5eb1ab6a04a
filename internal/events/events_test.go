package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"vehicle_parking/internal/domain"
	"vehicle_parking/internal/metrics"
)

type recorder struct {
	mu     sync.Mutex
	events []domain.ReservationEvent
	err    error
}

func (r *recorder) Publish(_ context.Context, e domain.ReservationEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return r.err
}

func (r *recorder) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func sampleEvent() domain.ReservationEvent {
	return domain.ReservationEvent{
		Type:          domain.EventReservationCreated,
		ReservationID: 11,
		UserID:        3,
		PlotID:        2,
		SlotID:        5,
		SlotStatus:    domain.SlotOccupied,
		OccurredAt:    time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestMulti_DeliversToAllAndJoinsErrors(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	ok := &recorder{}
	failing := &recorder{err: errors.New("broker down")}
	multi := NewMulti(m).Add("ws", ok).Add("amqp", failing)

	err := multi.Publish(context.Background(), sampleEvent())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker down")
	assert.Equal(t, 1, ok.len())
	assert.Equal(t, 1, failing.len())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EventsPublishedTotal.WithLabelValues("ws", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EventsPublishedTotal.WithLabelValues("amqp", "error")))
}

func TestDispatcher_DeliversAndDrainsOnShutdown(t *testing.T) {
	rec := &recorder{}
	d := NewDispatcher(rec, 8, zap.NewNop())

	for i := 0; i < 3; i++ {
		require.NoError(t, d.Publish(context.Background(), sampleEvent()))
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return rec.len() == 3 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done
}

func TestDispatcher_DropsWhenFull(t *testing.T) {
	d := NewDispatcher(&recorder{}, 1, zap.NewNop())
	require.NoError(t, d.Publish(context.Background(), sampleEvent()))
	assert.Error(t, d.Publish(context.Background(), sampleEvent()))
}

type fakeSQS struct {
	input *sqs.SendMessageInput
	err   error
}

func (f *fakeSQS) SendMessage(_ context.Context, in *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	f.input = in
	if f.err != nil {
		return nil, f.err
	}
	return &sqs.SendMessageOutput{MessageId: aws.String("m-1")}, nil
}

func TestSQSPublisher_SendsJSONWithAttributes(t *testing.T) {
	client := &fakeSQS{}
	p := newSQSPublisher(client, "https://sqs.example/queue", zap.NewNop())

	require.NoError(t, p.Publish(context.Background(), sampleEvent()))
	require.NotNil(t, client.input)
	assert.Equal(t, "https://sqs.example/queue", aws.ToString(client.input.QueueUrl))
	assert.Equal(t, "reservation.created", aws.ToString(client.input.MessageAttributes["event_type"].StringValue))

	var decoded domain.ReservationEvent
	require.NoError(t, json.Unmarshal([]byte(aws.ToString(client.input.MessageBody)), &decoded))
	assert.Equal(t, sampleEvent(), decoded)
}

func TestSQSPublisher_WrapsErrors(t *testing.T) {
	p := newSQSPublisher(&fakeSQS{err: errors.New("throttled")}, "q", zap.NewNop())
	err := p.Publish(context.Background(), sampleEvent())
	assert.ErrorContains(t, err, "throttled")
}

type fakeChannel struct {
	exchange, key string
	msg           amqp.Publishing
	closed        bool
}

func (f *fakeChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	f.exchange, f.key, f.msg = exchange, key, msg
	return nil
}

func (f *fakeChannel) Close() error {
	f.closed = true
	return nil
}

func TestAMQPPublisher_RoutesByEventType(t *testing.T) {
	ch := &fakeChannel{}
	p := &AMQPPublisher{exchange: "parking_events", logger: zap.NewNop(), ch: ch}

	event := sampleEvent()
	event.Type = domain.EventReservationCancelled
	require.NoError(t, p.Publish(context.Background(), event))

	assert.Equal(t, "parking_events", ch.exchange)
	assert.Equal(t, "reservation.cancelled", ch.key)
	assert.Equal(t, "application/json", ch.msg.ContentType)
	assert.Equal(t, amqp.Persistent, ch.msg.DeliveryMode)

	require.NoError(t, p.Close())
	assert.True(t, ch.closed)
	assert.Error(t, p.Publish(context.Background(), event))
}
