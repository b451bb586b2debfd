package signature

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"unicode/utf8"
)

// ErrInvalidValue marks non-finite or out-of-type input to the quantizer or builder.
var ErrInvalidValue = errors.New("invalid value")

// #region bins
const (
	CoherenceBins     = 10
	UrgencyBins       = 10
	EnergyBins        = 5
	FieldStrengthBins = 5

	MinZone = 1
	MaxZone = 5
)

// #endregion bins

// #region polyvagal
// PolyvagalState is the autonomic state label carried by a felt context.
type PolyvagalState string

const (
	Ventral     PolyvagalState = "ventral"
	Sympathetic PolyvagalState = "sympathetic"
	Dorsal      PolyvagalState = "dorsal"
	Mixed       PolyvagalState = "mixed"
)

// Valid reports whether p is one of the four enumerated states.
func (p PolyvagalState) Valid() bool {
	switch p {
	case Ventral, Sympathetic, Dorsal, Mixed:
		return true
	}
	return false
}

// #endregion polyvagal

// #region optional
// Optional holds a value that may be absent. Absent is distinct from the zero value.
// Optional is comparable whenever T is, so it can live inside map keys.
type Optional[T comparable] struct {
	value T
	ok    bool
}

// Some wraps a present value.
func Some[T comparable](v T) Optional[T] {
	return Optional[T]{value: v, ok: true}
}

// None returns the absent sentinel.
func None[T comparable]() Optional[T] {
	return Optional[T]{}
}

// Get returns the value and whether it is present.
func (o Optional[T]) Get() (T, bool) {
	return o.value, o.ok
}

// Present reports whether a value is set.
func (o Optional[T]) Present() bool {
	return o.ok
}

// any returns the value, or nil when absent.
func (o Optional[T]) any() any {
	if !o.ok {
		return nil
	}
	return o.value
}

// MarshalJSON encodes absent as null.
func (o Optional[T]) MarshalJSON() ([]byte, error) {
	if !o.ok {
		return []byte("null"), nil
	}
	return json.Marshal(o.value)
}

// UnmarshalJSON treats null as absent. An omitted field never reaches here and stays absent.
func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*o = Optional[T]{}
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*o = Some(v)
	return nil
}

// #endregion optional

// #region set
// Set is an unordered collection of labels held in canonical form (sorted, de-duplicated,
// JSON-encoded), so two sets with the same members are == regardless of input order.
// The zero value is the empty set.
type Set struct {
	canon string
	// badUTF8 marks a set built from a label that is not valid UTF-8. Such a label cannot be
	// encoded faithfully, so Build and key validation reject the set.
	badUTF8 bool
}

// NewSet canonicalizes labels into a Set.
func NewSet(labels ...string) Set {
	members := slices.Clone(labels)
	slices.Sort(members)
	members = slices.Compact(members)
	if len(members) == 0 {
		return Set{}
	}
	b, _ := json.Marshal(members)
	s := Set{canon: string(b)}
	for _, m := range members {
		if !utf8.ValidString(m) {
			s.badUTF8 = true
			break
		}
	}
	return s
}

// Members returns the sorted members.
func (s Set) Members() []string {
	if s.canon == "" {
		return []string{}
	}
	var members []string
	_ = json.Unmarshal([]byte(s.canon), &members)
	return members
}

// Len returns the number of members.
func (s Set) Len() int {
	return len(s.Members())
}

// String returns the canonical encoding.
func (s Set) String() string {
	if s.canon == "" {
		return "[]"
	}
	return s.canon
}

// MarshalJSON encodes the set as a sorted JSON array.
func (s Set) MarshalJSON() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalJSON accepts any JSON string array and canonicalizes it.
func (s *Set) UnmarshalJSON(data []byte) error {
	var members []string
	if err := json.Unmarshal(data, &members); err != nil {
		return fmt.Errorf("set: %w", err)
	}
	*s = NewSet(members...)
	return nil
}

// #endregion set

// #region felt-context
// FeltContext is the raw per-turn input from the felt-context producers.
// Continuous fields are expected in [0,1]; finite values outside it are clamped.
type FeltContext struct {
	Participants  []string       `json:"participants"`
	Category      string         `json:"category"`
	Mechanism     string         `json:"mechanism"`
	Coherence     float64        `json:"coherence"`
	Urgency       float64        `json:"urgency"`
	Energy        float64        `json:"energy"`
	FieldStrength float64        `json:"field_strength"`
	Polyvagal     PolyvagalState `json:"polyvagal_state"`
	Zone          int            `json:"zone"`
	Kairos        bool           `json:"kairos"`
	DominantLabel string         `json:"dominant_label"`

	ConstraintPattern Optional[string] `json:"constraint_pattern"`
	VocabularyTerms   Optional[Set]    `json:"vocabulary_terms"`
	SatisfactionTier  Optional[string] `json:"satisfaction_tier"`
	EmissionPath      Optional[string] `json:"emission_path"`
	CycleCount        Optional[int]    `json:"cycle_count"`
	EntityContext     Optional[Set]    `json:"entity_context"`
}

// #endregion felt-context

// #region precision
// Precision selects how many signature fields a Key carries.
type Precision int

const (
	Standard Precision = iota
	Coarse
	Full
)

// Arity returns the tuple length of keys at this precision.
func (p Precision) Arity() int {
	switch p {
	case Coarse:
		return 4
	case Full:
		return 18
	default:
		return 12
	}
}

func (p Precision) String() string {
	switch p {
	case Coarse:
		return "coarse"
	case Full:
		return "full"
	default:
		return "standard"
	}
}

// ParsePrecision maps "coarse", "standard" or "full" to a Precision.
func ParsePrecision(s string) (Precision, error) {
	switch s {
	case "coarse":
		return Coarse, nil
	case "standard", "":
		return Standard, nil
	case "full":
		return Full, nil
	}
	return Standard, fmt.Errorf("%w: unknown precision %q", ErrInvalidValue, s)
}

// #endregion precision
