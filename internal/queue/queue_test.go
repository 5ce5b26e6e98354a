package queue

import "testing"

func TestRedactURL(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"with password", "amqp://empire:hunter2@mq:5672/", "amqp://empire:REDACTED@mq:5672/"},
		{"user only", "amqp://empire@mq:5672/", "amqp://empire@mq:5672/"},
		{"no user", "amqp://mq:5672/", "amqp://mq:5672/"},
		{"invalid", "amqp://user:pass@%zz", "<invalid url>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := redactURL(tt.in); got != tt.want {
				t.Errorf("redactURL(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestMessage_NilSafe(t *testing.T) {
	var m *Message
	if err := m.Ack(); err != nil {
		t.Errorf("nil Message.Ack() = %v", err)
	}
	if err := m.Nack(true); err != nil {
		t.Errorf("nil Message.Nack() = %v", err)
	}
}
