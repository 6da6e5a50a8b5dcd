package pipeline

import "sync"

// Downstream aggregation streams. Each carries one homogeneous event type.
const (
	StreamExchanges       = "exchangeAggregation"
	StreamPayments        = "paymentsAggregation"
	StreamAccountPayments = "accountPaymentsAggregation"
	StreamStats           = "statsAggregation"
)

// Emitter delivers derived events to named downstream streams. Delivery is
// at least once: events are emitted only after their rows are durable, and
// a re-import emits them again.
type Emitter interface {
	Emit(stream string, event any) error
}

// Sink consumes one stream's events.
type Sink interface {
	Process(event any) error
}

// SinkEmitter routes each stream to a registered sink. Streams without a
// sink are dropped silently; consumers opt in per stream.
type SinkEmitter struct {
	mu    sync.RWMutex
	sinks map[string]Sink
}

// NewSinkEmitter creates an emitter with no sinks attached.
func NewSinkEmitter() *SinkEmitter {
	return &SinkEmitter{sinks: make(map[string]Sink)}
}

// Register attaches a sink to a stream, replacing any previous one.
func (e *SinkEmitter) Register(stream string, sink Sink) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sinks[stream] = sink
}

// Emit delivers one event to the stream's sink, if any.
func (e *SinkEmitter) Emit(stream string, event any) error {
	e.mu.RLock()
	sink, ok := e.sinks[stream]
	e.mu.RUnlock()
	if !ok {
		return nil
	}
	return sink.Process(event)
}

// NopEmitter discards every event.
type NopEmitter struct{}

// Emit discards the event.
func (NopEmitter) Emit(string, any) error { return nil }
