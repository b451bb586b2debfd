package signature

// #region representative
// Representative returns a felt context that builds back to s: every quantized value is
// the midpoint of its bin and the optional fields are carried over unchanged.
func Representative(s Signature) FeltContext {
	return FeltContext{
		Participants:      s.Participants(),
		Category:          s.category,
		Mechanism:         s.mechanism,
		Coherence:         binMidpoint(s.coherenceBin, CoherenceBins),
		Urgency:           binMidpoint(s.urgencyBin, UrgencyBins),
		Energy:            binMidpoint(s.energyBin, EnergyBins),
		FieldStrength:     binMidpoint(s.fieldStrengthBin, FieldStrengthBins),
		Polyvagal:         s.polyvagal,
		Zone:              s.zone,
		Kairos:            s.kairos,
		DominantLabel:     s.dominantLabel,
		ConstraintPattern: s.constraintPattern,
		VocabularyTerms:   s.vocabularyTerms,
		SatisfactionTier:  s.satisfactionTier,
		EmissionPath:      s.emissionPath,
		CycleCount:        s.cycleCount,
		EntityContext:     s.entityContext,
	}
}

func binMidpoint(bin, bins int) float64 {
	return (float64(bin) + 0.5) / float64(bins)
}

// #endregion representative
