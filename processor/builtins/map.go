package builtins

import (
	"context"

	"github.com/hugolhafner/go-transit/processor"
	"github.com/hugolhafner/go-transit/record"
)

var _ processor.Processor[any, any, any, any] = (*MapProcessor[any, any, any, any])(nil)

// MapFunc turns one input key/value pair into exactly one output pair.
type MapFunc[KIn, VIn, KOut, VOut any] func(context.Context, KIn, VIn) (KOut, VOut, error)

type MapProcessor[KIn, VIn, KOut, VOut any] struct {
	mapper MapFunc[KIn, VIn, KOut, VOut]
	ctx    processor.Context[KOut, VOut]
}

func NewMapProcessor[KIn, VIn, KOut, VOut any](
	mapper MapFunc[KIn, VIn, KOut, VOut],
) *MapProcessor[KIn, VIn, KOut, VOut] {
	return &MapProcessor[KIn, VIn, KOut, VOut]{mapper: mapper}
}

// Map returns a supplier producing a fresh MapProcessor per partition worker.
func Map[KIn, VIn, KOut, VOut any](
	mapper MapFunc[KIn, VIn, KOut, VOut],
) processor.Supplier[KIn, VIn, KOut, VOut] {
	return func() processor.Processor[KIn, VIn, KOut, VOut] {
		return NewMapProcessor(mapper)
	}
}

func (p *MapProcessor[KIn, VIn, KOut, VOut]) Init(ctx processor.Context[KOut, VOut]) {
	p.ctx = ctx
}

// Process maps r and forwards the result with the input metadata preserved.
func (p *MapProcessor[KIn, VIn, KOut, VOut]) Process(ctx context.Context, r *record.Record[KIn, VIn]) error {
	key, value, err := p.mapper(ctx, r.Key, r.Value)
	if err != nil {
		return err
	}

	out := &record.Record[KOut, VOut]{Key: key, Value: value, Metadata: r.Metadata}
	return p.ctx.Forward(ctx, out)
}

func (p *MapProcessor[KIn, VIn, KOut, VOut]) Close() error {
	return nil
}
