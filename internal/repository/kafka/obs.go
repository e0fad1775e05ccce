package kafka

import "github.com/segmentio/kafka-go"

// carrierMap adapts a plain map to propagation.TextMapCarrier for
// injecting trace context into outgoing messages.
type carrierMap map[string]string

func (m carrierMap) Get(k string) string { return m[k] }
func (m carrierMap) Set(k, v string)     { m[k] = v }

func (m carrierMap) Keys() []string {
	ks := make([]string, 0, len(m))
	for k := range m {
		ks = append(ks, k)
	}
	return ks
}

func (m carrierMap) headers() []kafka.Header {
	hs := make([]kafka.Header, 0, len(m))
	for k, v := range m {
		hs = append(hs, kafka.Header{Key: k, Value: []byte(v)})
	}
	return hs
}

// headerCarrier reads trace context back out of consumed headers. It is
// read-only; Set is a no-op.
type headerCarrier []kafka.Header

func (h headerCarrier) Get(k string) string {
	for _, x := range h {
		if x.Key == k {
			return string(x.Value)
		}
	}
	return ""
}

func (h headerCarrier) Set(string, string) {}

func (h headerCarrier) Keys() []string {
	ks := make([]string, 0, len(h))
	for _, x := range h {
		ks = append(ks, x.Key)
	}
	return ks
}
