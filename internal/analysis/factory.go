package analysis

import "fmt"

// BackendKind names one of the four analyzer backends, used by Configuration
// to name backends without importing their concrete types.
type BackendKind string

const (
	BackendKindFastSymbol        BackendKind = "fast_symbol"
	BackendKindStructuralPattern BackendKind = "structural_pattern"
	BackendKindDeepSemantic      BackendKind = "deep_semantic"
	BackendKindLintDriven        BackendKind = "lint_driven"
)

// BackendSpec pairs a backend with the reference-count threshold a
// TieredStrategy short-circuits on when that backend is reached.
type BackendSpec struct {
	Backend   BackendKind
	Threshold int
}

// StrategyKind selects which Strategy Configuration builds.
type StrategyKind string

const (
	TieredStrategyKind    StrategyKind = "tiered"
	ConsensusStrategyKind StrategyKind = "consensus"
)

// NewBackend constructs the concrete Backend for kind.
func NewBackend(kind BackendKind) (Backend, error) {
	switch kind {
	case BackendKindFastSymbol:
		return NewFastSymbolBackend(), nil
	case BackendKindStructuralPattern:
		return NewStructuralPatternBackend()
	case BackendKindDeepSemantic:
		return NewDeepSemanticBackend(), nil
	case BackendKindLintDriven:
		return NewLintDrivenBackend(), nil
	default:
		return nil, fmt.Errorf("analysis: unknown backend kind %q", kind)
	}
}

// BuildStrategy constructs the Strategy a Configuration names: a
// TieredStrategy runs backendOrder in sequence with each spec's threshold, a
// ConsensusStrategy requires exactly two backends (the first two named in
// backendOrder; their thresholds are unused).
func BuildStrategy(kind StrategyKind, backendOrder []BackendSpec) (Strategy, error) {
	if len(backendOrder) == 0 {
		return nil, fmt.Errorf("analysis: backend order must name at least one backend")
	}

	switch kind {
	case TieredStrategyKind, "":
		tiered := make([]TieredBackend, 0, len(backendOrder))
		for _, spec := range backendOrder {
			b, err := NewBackend(spec.Backend)
			if err != nil {
				return nil, err
			}
			tiered = append(tiered, TieredBackend{Backend: b, Threshold: spec.Threshold})
		}
		return TieredStrategy{Backends: tiered}, nil

	case ConsensusStrategyKind:
		if len(backendOrder) < 2 {
			return nil, fmt.Errorf("analysis: consensus strategy requires exactly 2 backends, got %d", len(backendOrder))
		}
		first, err := NewBackend(backendOrder[0].Backend)
		if err != nil {
			return nil, err
		}
		second, err := NewBackend(backendOrder[1].Backend)
		if err != nil {
			return nil, err
		}
		return ConsensusStrategy{First: first, Second: second}, nil

	default:
		return nil, fmt.Errorf("analysis: unknown strategy kind %q", kind)
	}
}
