package kafka

import (
	"github.com/IBM/sarama"
	"go.opentelemetry.io/otel/propagation"
)

const (
	headerEventType = "event_type"
	headerEventID   = "event_id"
)

// recordHeaders carries trace context on an outgoing message
type recordHeaders struct {
	headers *[]sarama.RecordHeader
}

var _ propagation.TextMapCarrier = recordHeaders{}

func (h recordHeaders) Get(key string) string {
	for _, header := range *h.headers {
		if string(header.Key) == key {
			return string(header.Value)
		}
	}
	return ""
}

func (h recordHeaders) Set(key, value string) {
	*h.headers = append(*h.headers, sarama.RecordHeader{Key: []byte(key), Value: []byte(value)})
}

func (h recordHeaders) Keys() []string {
	keys := make([]string, len(*h.headers))
	for i, header := range *h.headers {
		keys[i] = string(header.Key)
	}
	return keys
}

// messageHeaders reads trace context and routing headers from a consumed message
type messageHeaders []*sarama.RecordHeader

var _ propagation.TextMapCarrier = messageHeaders(nil)

func (h messageHeaders) Get(key string) string {
	for _, header := range h {
		if header != nil && string(header.Key) == key {
			return string(header.Value)
		}
	}
	return ""
}

// Set is a no-op; consumed messages are read-only
func (h messageHeaders) Set(string, string) {}

func (h messageHeaders) Keys() []string {
	keys := make([]string, 0, len(h))
	for _, header := range h {
		if header != nil {
			keys = append(keys, string(header.Key))
		}
	}
	return keys
}
