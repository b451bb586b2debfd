package signature

import (
	"fmt"
	"math"

	"github.com/cespare/xxhash/v2"
)

// #region quantize
// Quantize maps value into one of bins equal-width bins over [min, max].
// Finite values outside the range are clamped; value == max lands in the last bin.
func Quantize(value float64, bins int, min, max float64) (int, error) {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, fmt.Errorf("%w: non-finite value %v", ErrInvalidValue, value)
	}
	if bins < 1 {
		return 0, fmt.Errorf("%w: bins must be >= 1, got %d", ErrInvalidValue, bins)
	}
	if math.IsNaN(min) || math.IsInf(min, 0) || math.IsNaN(max) || math.IsInf(max, 0) || max <= min {
		return 0, fmt.Errorf("%w: bad range [%v, %v]", ErrInvalidValue, min, max)
	}

	if value < min {
		value = min
	}
	if value >= max {
		return bins - 1, nil
	}
	width := (max - min) / float64(bins)
	bin := int(math.Floor((value - min) / width))
	if bin > bins-1 {
		bin = bins - 1
	}
	return bin, nil
}

// #endregion quantize

// #region signature
// Signature is the canonical, quantized description of a felt context.
// It is an immutable value: fields are set by Build or FromKey and only read afterwards.
// Two signatures with the same field values are == and hash identically.
type Signature struct {
	participants     Set
	participantCount int
	category         string
	mechanism        string

	coherenceBin     int
	urgencyBin       int
	polyvagal        PolyvagalState
	zone             int
	energyBin        int
	kairos           bool
	fieldStrengthBin int
	dominantLabel    string

	constraintPattern Optional[string]
	vocabularyTerms   Optional[Set]
	satisfactionTier  Optional[string]
	emissionPath      Optional[string]
	cycleCount        Optional[int]
	entityContext     Optional[Set]
}

func (s Signature) Participants() []string { return s.participants.Members() }
func (s Signature) ParticipantSet() Set { return s.participants }
func (s Signature) ParticipantCount() int { return s.participantCount }
func (s Signature) Category() string { return s.category }
func (s Signature) Mechanism() string { return s.mechanism }
func (s Signature) CoherenceBin() int { return s.coherenceBin }
func (s Signature) UrgencyBin() int { return s.urgencyBin }
func (s Signature) Polyvagal() PolyvagalState { return s.polyvagal }
func (s Signature) Zone() int { return s.zone }
func (s Signature) EnergyBin() int { return s.energyBin }
func (s Signature) Kairos() bool { return s.kairos }
func (s Signature) FieldStrengthBin() int { return s.fieldStrengthBin }
func (s Signature) DominantLabel() string { return s.dominantLabel }
func (s Signature) ConstraintPattern() Optional[string] { return s.constraintPattern }
func (s Signature) VocabularyTerms() Optional[Set] { return s.vocabularyTerms }
func (s Signature) SatisfactionTier() Optional[string] { return s.satisfactionTier }
func (s Signature) EmissionPath() Optional[string] { return s.emissionPath }
func (s Signature) CycleCount() Optional[int] { return s.cycleCount }
func (s Signature) EntityContext() Optional[Set] { return s.entityContext }

// Equal reports structural equality.
func (s Signature) Equal(other Signature) bool {
	return s == other
}

// Hash returns a stable 64-bit hash of the canonical full-precision encoding.
func (s Signature) Hash() uint64 {
	return xxhash.Sum64String(Project(s, Full).String())
}

func (s Signature) String() string {
	return Project(s, Full).String()
}

// #endregion signature

// #region build
// Build quantizes a felt context into a Signature.
func Build(fc FeltContext) (Signature, error) {
	if !fc.Polyvagal.Valid() {
		return Signature{}, fmt.Errorf("%w: polyvagal state %q", ErrInvalidValue, fc.Polyvagal)
	}
	if fc.Zone < MinZone || fc.Zone > MaxZone {
		return Signature{}, fmt.Errorf("%w: zone %d outside [%d, %d]", ErrInvalidValue, fc.Zone, MinZone, MaxZone)
	}
	if n, ok := fc.CycleCount.Get(); ok && n < 0 {
		return Signature{}, fmt.Errorf("%w: negative cycle count %d", ErrInvalidValue, n)
	}

	coherence, err := Quantize(fc.Coherence, CoherenceBins, 0, 1)
	if err != nil {
		return Signature{}, fmt.Errorf("coherence: %w", err)
	}
	urgency, err := Quantize(fc.Urgency, UrgencyBins, 0, 1)
	if err != nil {
		return Signature{}, fmt.Errorf("urgency: %w", err)
	}
	energy, err := Quantize(fc.Energy, EnergyBins, 0, 1)
	if err != nil {
		return Signature{}, fmt.Errorf("energy: %w", err)
	}
	field, err := Quantize(fc.FieldStrength, FieldStrengthBins, 0, 1)
	if err != nil {
		return Signature{}, fmt.Errorf("field strength: %w", err)
	}

	participants := NewSet(fc.Participants...)
	sig := Signature{
		participants:      participants,
		participantCount:  participants.Len(),
		category:          fc.Category,
		mechanism:         fc.Mechanism,
		coherenceBin:      coherence,
		urgencyBin:        urgency,
		polyvagal:         fc.Polyvagal,
		zone:              fc.Zone,
		energyBin:         energy,
		kairos:            fc.Kairos,
		fieldStrengthBin:  field,
		dominantLabel:     fc.DominantLabel,
		constraintPattern: fc.ConstraintPattern,
		vocabularyTerms:   fc.VocabularyTerms,
		satisfactionTier:  fc.SatisfactionTier,
		emissionPath:      fc.EmissionPath,
		cycleCount:        fc.CycleCount,
		entityContext:     fc.EntityContext,
	}
	if err := Project(sig, Full).validateLabels(); err != nil {
		return Signature{}, err
	}
	return sig, nil
}

// #endregion build

// #region from-key
// FromKey rebuilds a Signature from a standard or full key. Optional fields of a
// standard key come back absent.
func FromKey(k Key) (Signature, error) {
	if k.precision == Coarse {
		return Signature{}, fmt.Errorf("%w: coarse key cannot be expanded to a signature", ErrInvalidValue)
	}
	if err := k.validate(); err != nil {
		return Signature{}, err
	}
	return Signature{
		participants:      k.participants,
		participantCount:  k.participantCount,
		category:          k.category,
		mechanism:         k.mechanism,
		coherenceBin:      k.coherenceBin,
		urgencyBin:        k.urgencyBin,
		polyvagal:         k.polyvagal,
		zone:              k.zone,
		energyBin:         k.energyBin,
		kairos:            k.kairos,
		fieldStrengthBin:  k.fieldStrengthBin,
		dominantLabel:     k.dominantLabel,
		constraintPattern: k.constraintPattern,
		vocabularyTerms:   k.vocabularyTerms,
		satisfactionTier:  k.satisfactionTier,
		emissionPath:      k.emissionPath,
		cycleCount:        k.cycleCount,
		entityContext:     k.entityContext,
	}, nil
}

// #endregion from-key

// #region doc
// Doc is the serialized field view of a Signature stored next to each entry.
type Doc struct {
	Participants     []string       `json:"participants"`
	ParticipantCount int            `json:"participant_count"`
	Category         string         `json:"category"`
	Mechanism        string         `json:"mechanism"`
	CoherenceBin     int            `json:"coherence_bin"`
	UrgencyBin       int            `json:"urgency_bin"`
	PolyvagalState   PolyvagalState `json:"polyvagal_state"`
	Zone             int            `json:"zone"`
	EnergyBin        int            `json:"energy_bin"`
	Kairos           bool           `json:"kairos"`
	FieldStrengthBin int            `json:"field_strength_bin"`
	DominantLabel    string         `json:"dominant_label"`
}

// ToDoc returns the standard-precision fields of s.
func (s Signature) ToDoc() Doc {
	return Doc{
		Participants:     s.Participants(),
		ParticipantCount: s.participantCount,
		Category:         s.category,
		Mechanism:        s.mechanism,
		CoherenceBin:     s.coherenceBin,
		UrgencyBin:       s.urgencyBin,
		PolyvagalState:   s.polyvagal,
		Zone:             s.zone,
		EnergyBin:        s.energyBin,
		Kairos:           s.kairos,
		FieldStrengthBin: s.fieldStrengthBin,
		DominantLabel:    s.dominantLabel,
	}
}

// FromDoc validates d and converts it to a Signature with all optional fields absent.
func FromDoc(d Doc) (Signature, error) {
	participants := NewSet(d.Participants...)
	k := Key{
		precision:        Standard,
		participants:     participants,
		participantCount: d.ParticipantCount,
		category:         d.Category,
		mechanism:        d.Mechanism,
		coherenceBin:     d.CoherenceBin,
		urgencyBin:       d.UrgencyBin,
		polyvagal:        d.PolyvagalState,
		zone:             d.Zone,
		energyBin:        d.EnergyBin,
		kairos:           d.Kairos,
		fieldStrengthBin: d.FieldStrengthBin,
		dominantLabel:    d.DominantLabel,
	}
	return FromKey(k)
}

// #endregion doc
