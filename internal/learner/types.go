package learner

// #region config
// Config holds the learning and decay parameters for phrase quality.
type Config struct {
	Alpha            float64 // EMA weight of the newest satisfaction (default 0.15)
	Lambda           float64 // recency decay per elapsed turn (default 0.001)
	SuccessThreshold float64 // satisfaction >= this counts as a success (default 0.6)
}

// DefaultConfig returns the standard learning parameters.
func DefaultConfig() Config {
	return Config{
		Alpha:            0.15,
		Lambda:           0.001,
		SuccessThreshold: 0.6,
	}
}

// #endregion config

// #region phrase-record
// PhraseRecord is the learned quality of one phrase under one pattern key.
type PhraseRecord struct {
	Text             string
	EMAQuality       float64
	SuccessCount     int
	TotalAttempts    int
	SuccessRate      float64
	MeanSatisfaction float64
	LastTurn         int64
}

// #endregion phrase-record
