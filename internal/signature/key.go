package signature

import (
	"encoding/json"
	"fmt"
	"unicode/utf8"
)

// #region key
// Key is a fixed-arity projection of a Signature. Fields beyond the key's precision are
// zero. Keys are comparable and carry their precision, so a coarse key never equals a
// standard one.
type Key struct {
	precision Precision

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

// Precision returns the precision the key was projected at.
func (k Key) Precision() Precision { return k.precision }

// Arity returns the tuple length: 4, 12 or 18.
func (k Key) Arity() int { return k.precision.Arity() }

// CoherenceBin and UrgencyBin expose the two fuzzy-relaxed dimensions.
func (k Key) CoherenceBin() int { return k.coherenceBin }
func (k Key) UrgencyBin() int { return k.urgencyBin }

// Fields returns the ordered tuple. Absent optional fields are nil.
func (k Key) Fields() []any {
	fields := []any{k.participants, k.participantCount, k.category, k.mechanism}
	if k.precision == Coarse {
		return fields
	}
	fields = append(fields,
		k.coherenceBin, k.urgencyBin, k.polyvagal, k.zone,
		k.energyBin, k.kairos, k.fieldStrengthBin, k.dominantLabel,
	)
	if k.precision == Standard {
		return fields
	}
	return append(fields,
		k.constraintPattern.any(), k.vocabularyTerms.any(), k.satisfactionTier.any(),
		k.emissionPath.any(), k.cycleCount.any(), k.entityContext.any(),
	)
}

// String is the canonical, reversible encoding: a JSON array of Fields.
func (k Key) String() string {
	b, err := json.Marshal(k.Fields())
	if err != nil {
		// Fields holds only strings, ints, bools and Sets.
		panic(fmt.Sprintf("signature: encode key: %v", err))
	}
	return string(b)
}

// #endregion key

// #region project
// Project derives the key of s at precision p.
func Project(s Signature, p Precision) Key {
	k := Key{
		precision:        p,
		participants:     s.participants,
		participantCount: s.participantCount,
		category:         s.category,
		mechanism:        s.mechanism,
	}
	if p == Coarse {
		return k
	}
	k.coherenceBin = s.coherenceBin
	k.urgencyBin = s.urgencyBin
	k.polyvagal = s.polyvagal
	k.zone = s.zone
	k.energyBin = s.energyBin
	k.kairos = s.kairos
	k.fieldStrengthBin = s.fieldStrengthBin
	k.dominantLabel = s.dominantLabel
	if p == Standard {
		return k
	}
	k.constraintPattern = s.constraintPattern
	k.vocabularyTerms = s.vocabularyTerms
	k.satisfactionTier = s.satisfactionTier
	k.emissionPath = s.emissionPath
	k.cycleCount = s.cycleCount
	k.entityContext = s.entityContext
	return k
}

// #endregion project

// #region parse
// ParseKey reverses Key.String. The tuple length selects the precision.
func ParseKey(s string) (Key, error) {
	if !utf8.ValidString(s) {
		return Key{}, fmt.Errorf("%w: key is not valid UTF-8", ErrInvalidValue)
	}
	var raw []json.RawMessage
	if err := json.Unmarshal([]byte(s), &raw); err != nil {
		return Key{}, fmt.Errorf("%w: key %q: %v", ErrInvalidValue, s, err)
	}

	var k Key
	switch len(raw) {
	case Coarse.Arity():
		k.precision = Coarse
	case Standard.Arity():
		k.precision = Standard
	case Full.Arity():
		k.precision = Full
	default:
		return Key{}, fmt.Errorf("%w: key arity %d", ErrInvalidValue, len(raw))
	}

	targets := []any{&k.participants, &k.participantCount, &k.category, &k.mechanism}
	if k.precision != Coarse {
		targets = append(targets,
			&k.coherenceBin, &k.urgencyBin, &k.polyvagal, &k.zone,
			&k.energyBin, &k.kairos, &k.fieldStrengthBin, &k.dominantLabel,
		)
	}
	if k.precision == Full {
		targets = append(targets,
			&k.constraintPattern, &k.vocabularyTerms, &k.satisfactionTier,
			&k.emissionPath, &k.cycleCount, &k.entityContext,
		)
	}
	for i, target := range targets {
		if err := json.Unmarshal(raw[i], target); err != nil {
			return Key{}, fmt.Errorf("%w: key field %d: %v", ErrInvalidValue, i, err)
		}
	}
	if err := k.validate(); err != nil {
		return Key{}, err
	}
	return k, nil
}

// #endregion parse

// #region validate
func (k Key) validate() error {
	if err := k.validateLabels(); err != nil {
		return err
	}
	if k.participantCount != k.participants.Len() {
		return fmt.Errorf("%w: participant count %d != %d participants",
			ErrInvalidValue, k.participantCount, k.participants.Len())
	}
	if k.precision == Coarse {
		return nil
	}
	checks := []struct {
		name     string
		val, max int
	}{
		{"coherence_bin", k.coherenceBin, CoherenceBins - 1},
		{"urgency_bin", k.urgencyBin, UrgencyBins - 1},
		{"energy_bin", k.energyBin, EnergyBins - 1},
		{"field_strength_bin", k.fieldStrengthBin, FieldStrengthBins - 1},
	}
	for _, c := range checks {
		if c.val < 0 || c.val > c.max {
			return fmt.Errorf("%w: %s %d outside [0, %d]", ErrInvalidValue, c.name, c.val, c.max)
		}
	}
	if !k.polyvagal.Valid() {
		return fmt.Errorf("%w: polyvagal state %q", ErrInvalidValue, k.polyvagal)
	}
	if k.zone < MinZone || k.zone > MaxZone {
		return fmt.Errorf("%w: zone %d outside [%d, %d]", ErrInvalidValue, k.zone, MinZone, MaxZone)
	}
	if n, ok := k.cycleCount.Get(); ok && n < 0 {
		return fmt.Errorf("%w: negative cycle count %d", ErrInvalidValue, n)
	}
	return nil
}

// validateLabels rejects labels that are not valid UTF-8. The canonical encoding is JSON,
// which would replace their bytes with U+FFFD and merge distinct keys.
func (k Key) validateLabels() error {
	labels := map[string]string{
		"category":       k.category,
		"mechanism":      k.mechanism,
		"dominant_label": k.dominantLabel,
	}
	optional := map[string]Optional[string]{
		"constraint_pattern": k.constraintPattern,
		"satisfaction_tier":  k.satisfactionTier,
		"emission_path":      k.emissionPath,
	}
	for name, o := range optional {
		if v, ok := o.Get(); ok {
			labels[name] = v
		}
	}
	for name, v := range labels {
		if !utf8.ValidString(v) {
			return fmt.Errorf("%w: %s is not valid UTF-8", ErrInvalidValue, name)
		}
	}

	sets := map[string]Optional[Set]{
		"participants":     Some(k.participants),
		"vocabulary_terms": k.vocabularyTerms,
		"entity_context":   k.entityContext,
	}
	for name, o := range sets {
		if v, ok := o.Get(); ok && v.badUTF8 {
			return fmt.Errorf("%w: %s member is not valid UTF-8", ErrInvalidValue, name)
		}
	}
	return nil
}

// #endregion validate
