package errorhandler

import (
	"context"
)

// ErrorPhase tells a handler which step of a record's trip failed.
type ErrorPhase int

const (
	PhaseUnknown ErrorPhase = iota
	// PhaseSerde covers decoding the consumed record and encoding the output.
	PhaseSerde
	// PhaseProcessing covers the transform itself, including producing no output.
	PhaseProcessing
	// PhaseProduction covers the acknowledged send to the sink topic.
	PhaseProduction
)

var phaseNames = map[ErrorPhase]string{
	PhaseSerde:      "serde",
	PhaseProcessing: "processing",
	PhaseProduction: "production",
}

func (p ErrorPhase) String() string {
	if name, ok := phaseNames[p]; ok {
		return name
	}
	return "unknown"
}

// RouteOption binds a handler to one phase of a PhaseRouter.
type RouteOption func(routes map[ErrorPhase]Handler)

func OnSerde(h Handler) RouteOption {
	return onPhase(PhaseSerde, h)
}

func OnProcessing(h Handler) RouteOption {
	return onPhase(PhaseProcessing, h)
}

func OnProduction(h Handler) RouteOption {
	return onPhase(PhaseProduction, h)
}

func onPhase(phase ErrorPhase, h Handler) RouteOption {
	return func(routes map[ErrorPhase]Handler) {
		if h != nil {
			routes[phase] = h
		}
	}
}

var _ Handler = (*PhaseRouter)(nil)

// PhaseRouter hands each error to the handler bound to its phase, or to the
// fallback when none is bound.
type PhaseRouter struct {
	fallback Handler
	routes   map[ErrorPhase]Handler
}

// NewPhaseRouter builds a router. A nil fallback fails without logging.
func NewPhaseRouter(fallback Handler, opts ...RouteOption) *PhaseRouter {
	if fallback == nil {
		fallback = SilentFail()
	}

	r := &PhaseRouter{fallback: fallback, routes: make(map[ErrorPhase]Handler, len(phaseNames))}
	for _, opt := range opts {
		opt(r.routes)
	}
	return r
}

func (r *PhaseRouter) Handle(ctx context.Context, ec ErrorContext) Action {
	if h, ok := r.routes[ec.Phase]; ok {
		return h.Handle(ctx, ec)
	}
	return r.fallback.Handle(ctx, ec)
}
