package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePhase(t *testing.T) {
	expr, err := ParsePhase(`p,P,p\,P\`)
	require.NoError(t, err)
	require.Len(t, expr.Alternatives, 4)

	assert.Equal(t, Alternative{Kind: TermRay, Wave: WaveP, Upgoing: true}, expr.Alternatives[0])
	assert.Equal(t, Alternative{Kind: TermRay, Wave: WaveP}, expr.Alternatives[1])
	assert.Equal(t, Alternative{Kind: TermRay, Wave: WaveP, Upgoing: true, ArrivesDown: true}, expr.Alternatives[2])
	assert.Equal(t, Alternative{Kind: TermRay, Wave: WaveP, ArrivesDown: true}, expr.Alternatives[3])
}

func TestParsePhase_Terms(t *testing.T) {
	tests := []struct {
		def  string
		want Alternative
	}{
		{"2.5", Alternative{Kind: TermVelocity, Velocity: 2500}},
		{"8+10", Alternative{Kind: TermVelocity, Velocity: 8000, Offset: 10}},
		{"S", Alternative{Kind: TermRay, Wave: WaveS}},
		{"s-2.5", Alternative{Kind: TermRay, Wave: WaveS, Upgoing: true, Offset: -2.5}},
		{"{stored:begin}+30", Alternative{Kind: TermStored, Ref: "begin", Offset: 30}},
		{" {stored:end} ", Alternative{Kind: TermStored, Ref: "end"}},
	}
	for _, tt := range tests {
		t.Run(tt.def, func(t *testing.T) {
			expr, err := ParsePhase(tt.def)
			require.NoError(t, err)
			require.Len(t, expr.Alternatives, 1)
			assert.Equal(t, tt.want, expr.Alternatives[0])
		})
	}
}

func TestParsePhase_Errors(t *testing.T) {
	for _, def := range []string{"", "Q", "P,", "{stored:begin", "{vel:3}", "P*2", "0", "{stored:1x}"} {
		t.Run(def, func(t *testing.T) {
			_, err := ParsePhase(def)
			assert.Error(t, err)
		})
	}
}

func TestParseTiming(t *testing.T) {
	tests := []struct {
		in   string
		want Timing
		str  string
	}{
		{"0", Timing{}, "0"},
		{"-10", Timing{Offset: -10}, "-10"},
		{"begin", Timing{PhaseID: "begin"}, "begin"},
		{"begin-50", Timing{PhaseID: "begin", Offset: -50}, "begin-50"},
		{"end+100", Timing{PhaseID: "end", Offset: 100}, "end+100"},
		{"{stored:begin}+1.5", Timing{PhaseID: "begin", Offset: 1.5}, "begin+1.5"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTiming(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.str, got.String())
		})
	}

	for _, bad := range []string{"", "begin*2", "+", "{stored:x", "1abc"} {
		_, err := ParseTiming(bad)
		assert.Error(t, err, bad)
	}
}

func TestCheckTiming(t *testing.T) {
	cfg := validConfig(t)
	assert.NoError(t, cfg.CheckTiming(MustParseTiming("end+100")))
	assert.NoError(t, cfg.CheckTiming(MustParseTiming("0")))
	assert.Error(t, cfg.CheckTiming(MustParseTiming("P-5")))
}
