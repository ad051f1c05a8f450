package events

import (
	"context"
	"encoding/json"
	"reflect"
	"testing"
)

func TestKafkaPublisherTopic(t *testing.T) {
	p, err := NewKafkaPublisher([]string{"localhost:9092"}, "exchange-hub.")
	if err != nil {
		t.Fatalf("new publisher: %v", err)
	}
	defer p.Close()

	cases := map[string]string{
		ExchangeStatusChanged: "exchange-hub.exchange",
		ParticipantAdded:      "exchange-hub.participant",
		EntitySyncCompleted:   "exchange-hub.entity_sync",
	}
	for eventType, want := range cases {
		if got := p.Topic(eventType); got != want {
			t.Fatalf("topic for %s: expected %s, got %s", eventType, want, got)
		}
	}
}

func TestKafkaPublisherRequiresBrokers(t *testing.T) {
	if _, err := NewKafkaPublisher(nil, "x"); err == nil {
		t.Fatalf("expected error without brokers")
	}
}

func TestEventKeyAndEncode(t *testing.T) {
	e := New(ExchangeStatusChanged, "ex-1", "u-1", map[string]any{"to": "45D"})
	if e.Key() != "ex-1" {
		t.Fatalf("expected exchange key, got %s", e.Key())
	}
	if e.ID == "" || e.OccurredAt.IsZero() {
		t.Fatalf("expected id and time to be stamped")
	}

	raw, err := e.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded["type"] != ExchangeStatusChanged || decoded["exchange_id"] != "ex-1" {
		t.Fatalf("unexpected payload: %v", decoded)
	}

	noExchange := New(TaskAssigned, "", "u-1", nil)
	if noExchange.Key() != noExchange.ID {
		t.Fatalf("expected id key without exchange")
	}
}

func TestRecorder(t *testing.T) {
	var r Recorder
	_ = r.Publish(context.Background(), New(ExchangeCreated, "a", "", nil))
	_ = r.Publish(context.Background(), New(ExchangeDeleted, "a", "", nil))

	if got := r.Types(); !reflect.DeepEqual(got, []string{ExchangeCreated, ExchangeDeleted}) {
		t.Fatalf("unexpected types: %v", got)
	}
}
