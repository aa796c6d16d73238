package otel

import (
	"github.com/hugolhafner/go-transit/kafka"
	"go.opentelemetry.io/otel/propagation"
)

var _ propagation.TextMapCarrier = HeaderCarrier{}

// HeaderCarrier exposes record headers to a propagator. Injected keys end up
// with exactly one header each, however many the record arrived with.
type HeaderCarrier struct {
	headers *[]kafka.Header
}

func NewHeaderCarrier(headers *[]kafka.Header) HeaderCarrier {
	return HeaderCarrier{headers: headers}
}

// Get returns the first header value for key.
func (c HeaderCarrier) Get(key string) string {
	for _, h := range *c.headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func (c HeaderCarrier) Set(key, value string) {
	out := (*c.headers)[:0]
	set := false
	for _, h := range *c.headers {
		if h.Key != key {
			out = append(out, h)
			continue
		}
		if !set {
			out = append(out, kafka.Header{Key: key, Value: []byte(value)})
			set = true
		}
	}
	if !set {
		out = append(out, kafka.Header{Key: key, Value: []byte(value)})
	}
	*c.headers = out
}

func (c HeaderCarrier) Keys() []string {
	seen := make(map[string]struct{}, len(*c.headers))
	keys := make([]string, 0, len(*c.headers))
	for _, h := range *c.headers {
		if _, ok := seen[h.Key]; ok {
			continue
		}
		seen[h.Key] = struct{}{}
		keys = append(keys, h.Key)
	}
	return keys
}
