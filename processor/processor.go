package processor

import (
	"context"

	"github.com/hugolhafner/go-transit/record"
)

// Processor is the interface that all processors must implement. It defines the lifecycle of a processor and how it processes records.
type Processor[KIn, VIn, KOut, VOut any] interface {
	Init(ctx Context[KOut, VOut])
	Process(ctx context.Context, record *record.Record[KIn, VIn]) error
	Close() error
}

// Context is the context passed to the Init method of a Processor. It allows the processor to forward records downstream with the correct types.
type Context[K, V any] interface {
	Forward(ctx context.Context, record *record.Record[K, V]) error
}

// Supplier creates a fresh processor instance. Each partition worker owns its own instance.
type Supplier[KIn, VIn, KOut, VOut any] func() Processor[KIn, VIn, KOut, VOut]

// ForwardFunc adapts a function to a Context.
type ForwardFunc[K, V any] func(ctx context.Context, record *record.Record[K, V]) error

func (f ForwardFunc[K, V]) Forward(ctx context.Context, record *record.Record[K, V]) error {
	return f(ctx, record)
}
