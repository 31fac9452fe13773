package mqtt

import (
	"encoding/json"
	"testing"
	"time"
)

func TestNewMessage(t *testing.T) {
	in := struct {
		Humidity    float64
		Temperature float64
	}{Humidity: 50, Temperature: 27.5}

	msg, err := NewMessage("/dht11", in)
	if err != nil {
		t.Fatalf("NewMessage() unexpected error: %v", err)
	}
	if msg.Topic != "/dht11" || !msg.Retained || msg.Qos != 0 {
		t.Errorf("NewMessage() = %+v", msg)
	}

	var out map[string]float64
	if err := json.Unmarshal(msg.Payload, &out); err != nil {
		t.Fatalf("payload is no json: %v", err)
	}
	if out["Humidity"] != 50 || out["Temperature"] != 27.5 {
		t.Errorf("payload = %v", out)
	}
}

func TestNewMessageMarshalError(t *testing.T) {
	if _, err := NewMessage("/dht11", make(chan int)); err == nil {
		t.Error("NewMessage() with a channel should fail")
	}
}

func TestServiceWithoutBroker(t *testing.T) {
	m := New()
	if err := m.Connect("", "dht11"); err != nil {
		t.Fatalf("Connect() without broker unexpected error: %v", err)
	}

	done := make(chan struct{})
	go func() {
		m.Service()
		close(done)
	}()

	// without broker messages are dropped
	m.C <- Message{Topic: "/dht11", Payload: []byte("{}")}
	_ = m.Close()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Service() didn't stop after Close()")
	}
}
