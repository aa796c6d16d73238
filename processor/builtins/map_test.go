//go:build unit

package builtins_test

import (
	"context"
	"errors"
	"testing"

	"github.com/hugolhafner/go-transit/processor"
	"github.com/hugolhafner/go-transit/processor/builtins"
	"github.com/hugolhafner/go-transit/record"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestMapProcessor_Process(t *testing.T) {
	t.Run(
		"map primitive types", func(t *testing.T) {
			tests := []struct {
				name     string
				mapper   builtins.MapFunc[int, int, int, int]
				input    *record.Record[int, int]
				expected *record.Record[int, int]
			}{
				{
					name: "double key and value",
					mapper: func(_ context.Context, k, v int) (int, int, error) {
						return k * 2, v * 2, nil
					},
					input:    &record.Record[int, int]{Key: 1, Value: 2},
					expected: &record.Record[int, int]{Key: 2, Value: 4},
				},
				{
					name: "increment key and value",
					mapper: func(_ context.Context, k, v int) (int, int, error) {
						return k + 1, v + 1, nil
					},
					input: &record.Record[int, int]{
						Key:      3,
						Value:    4,
						Metadata: record.Metadata{Topic: "in", Partition: 2, Offset: 9},
					},
					expected: &record.Record[int, int]{Key: 4, Value: 5},
				},
			}

			for _, tt := range tests {
				t.Run(
					tt.name, func(t *testing.T) {
						p := builtins.NewMapProcessor(tt.mapper)
						ctx := processor.NewMockContext[int, int]()
						ctx.Mock.On("Forward", mock.Anything).Return(nil)
						p.Init(ctx)

						err := p.Process(context.Background(), tt.input)
						require.NoError(t, err)
						ctx.AssertCalled(
							t, "Forward",
							&record.Record[int, int]{
								Key:      tt.expected.Key,
								Value:    tt.expected.Value,
								Metadata: tt.input.Metadata,
							},
						)
					},
				)
			}
		},
	)

	t.Run(
		"map to different struct types", func(t *testing.T) {
			type Input struct {
				A int
				B string
			}
			type Output struct {
				X string
				Y int
			}

			p := builtins.NewMapProcessor(
				func(_ context.Context, k string, v Input) (string, Output, error) {
					return k + "_mapped", Output{X: v.B, Y: v.A * 10}, nil
				},
			)
			ctx := processor.NewMockContext[string, Output]()
			ctx.Mock.On("Forward", mock.Anything).Return(nil)
			p.Init(ctx)

			input := &record.Record[string, Input]{Key: "key1", Value: Input{A: 5, B: "value"}}
			require.NoError(t, p.Process(context.Background(), input))
			ctx.AssertCalled(
				t, "Forward",
				&record.Record[string, Output]{
					Key:   "key1_mapped",
					Value: Output{X: "value", Y: 50},
				},
			)
		},
	)

	t.Run(
		"mapper error is returned without forwarding", func(t *testing.T) {
			boom := errors.New("boom")
			p := builtins.NewMapProcessor(
				func(_ context.Context, k, v string) (string, string, error) {
					return "", "", boom
				},
			)
			ctx := processor.NewMockContext[string, string]()
			p.Init(ctx)

			err := p.Process(context.Background(), &record.Record[string, string]{Key: "k", Value: "v"})
			require.ErrorIs(t, err, boom)
			ctx.AssertNotCalled(t, "Forward", mock.Anything)
		},
	)

	t.Run(
		"forward error is returned", func(t *testing.T) {
			boom := errors.New("sink down")
			p := builtins.NewMapProcessor(
				func(_ context.Context, k, v string) (string, string, error) {
					return k, v, nil
				},
			)
			ctx := processor.NewMockContext[string, string]()
			ctx.Mock.On("Forward", mock.Anything).Return(boom)
			p.Init(ctx)

			err := p.Process(context.Background(), &record.Record[string, string]{Key: "k", Value: "v"})
			require.ErrorIs(t, err, boom)
		},
	)
}
