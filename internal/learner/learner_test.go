package learner

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielpatrickdp/adaptive-state/phrase-cache/internal/signature"
)

func TestNewRecord_FirstObservationDefinesQuality(t *testing.T) {
	cfg := DefaultConfig()
	rec := Observe(NewRecord("I hear you", 0.9), 0.9, 1, cfg)

	assert.InDelta(t, 0.9, rec.EMAQuality, 1e-12)
	assert.Equal(t, 1, rec.TotalAttempts)
	assert.Equal(t, 1, rec.SuccessCount)
	assert.Equal(t, 1.0, rec.SuccessRate)
	assert.InDelta(t, 0.9, rec.MeanSatisfaction, 1e-12)
	assert.Equal(t, int64(1), rec.LastTurn)
}

func TestObserve_EMAConverges(t *testing.T) {
	cfg := DefaultConfig()
	const target, eps = 0.8, 1e-4

	n := int(math.Ceil(math.Log(eps) / math.Log(1-cfg.Alpha)))
	rec := NewRecord("x", 0)
	for i := 0; i < n; i++ {
		rec = Observe(rec, target, int64(i), cfg)
	}
	assert.InDelta(t, target, rec.EMAQuality, eps)
}

func TestObserve_DoesNotMutateInput(t *testing.T) {
	cfg := DefaultConfig()
	orig := NewRecord("x", 0.5)
	_ = Observe(orig, 1.0, 3, cfg)
	assert.Equal(t, NewRecord("x", 0.5), orig)
}

func TestObserve_SuccessRateExact(t *testing.T) {
	cfg := DefaultConfig()
	sats := []float64{0.6, 0.59, 1.0, 0.0, 0.61, 0.2, 0.6}
	want := 0
	rec := NewRecord("x", sats[0])
	for i, s := range sats {
		rec = Observe(rec, s, int64(i), cfg)
		if s >= 0.6 {
			want++
		}
	}
	assert.Equal(t, want, rec.SuccessCount)
	assert.Equal(t, float64(want)/float64(len(sats)), rec.SuccessRate)

	var sum float64
	for _, s := range sats {
		sum += s
	}
	assert.InDelta(t, sum/float64(len(sats)), rec.MeanSatisfaction, 1e-12)
}

func TestObserve_AlternatingSatisfaction(t *testing.T) {
	cfg := DefaultConfig()
	rec := NewRecord("X", 0.8)
	for i := 0; i < 20; i++ {
		s := 0.8
		if i%2 == 1 {
			s = 0.4
		}
		rec = Observe(rec, s, int64(i), cfg)
	}
	assert.Equal(t, 0.5, rec.SuccessRate)
	assert.Greater(t, rec.EMAQuality, 0.4)
	assert.Less(t, rec.EMAQuality, 0.8)
	assert.InDelta(t, 0.6, rec.MeanSatisfaction, 1e-12)
}

func TestRecencyWeight(t *testing.T) {
	cfg := DefaultConfig()
	rec := PhraseRecord{LastTurn: 100}

	assert.Equal(t, 1.0, RecencyWeight(rec, 100, cfg))
	assert.InDelta(t, math.Exp(-0.1), RecencyWeight(rec, 200, cfg), 1e-12)
	assert.Equal(t, 1.0, RecencyWeight(rec, 50, cfg), "earlier turns never boost the weight")
	assert.Less(t, RecencyWeight(rec, 1000, cfg), RecencyWeight(rec, 500, cfg))
}

func TestOverallQuality(t *testing.T) {
	cfg := DefaultConfig()
	rec := PhraseRecord{EMAQuality: 0.8, SuccessRate: 0.5, LastTurn: 10}
	assert.InDelta(t, 0.4, OverallQuality(rec, 10, cfg), 1e-12)
	assert.InDelta(t, 0.4*math.Exp(-0.01), OverallQuality(rec, 20, cfg), 1e-12)
}

func TestValidateSatisfaction(t *testing.T) {
	require.NoError(t, ValidateSatisfaction(0))
	require.NoError(t, ValidateSatisfaction(1))
	for _, s := range []float64{-0.01, 1.01, math.NaN(), math.Inf(1)} {
		assert.ErrorIs(t, ValidateSatisfaction(s), signature.ErrInvalidValue, "%v", s)
	}
}

func TestConfigValidate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	bad := DefaultConfig()
	bad.Alpha = 0
	assert.ErrorIs(t, bad.Validate(), signature.ErrInvalidValue)

	bad = DefaultConfig()
	bad.Lambda = -1
	assert.ErrorIs(t, bad.Validate(), signature.ErrInvalidValue)
}
