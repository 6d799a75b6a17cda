package config

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/gfstore/internal/earthmodel"
)

// DomainConfig prefixes configuration digests. The version suffix allows the
// canonical form to change later.
const DomainConfig = "gfstore/config/v1"

// hashWithDomain computes SHA-256 with domain separation.
// Format: SHA256(domain + 0x00 + data)
func hashWithDomain(domain string, data []byte) [32]byte {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// Canonical renders the fields that determine the content of the store in a
// stable textual form. Strings are NFC-normalised and earth models are
// re-rendered so that formatting differences in the source text do not change
// the digest.
func (c *Config) Canonical() []byte {
	var b strings.Builder
	str := func(k, v string) { fmt.Fprintf(&b, "%s=%q\n", k, norm.NFC.String(v)) }
	num := func(k string, v float64) { fmt.Fprintf(&b, "%s=%s\n", k, strconv.FormatFloat(v, 'g', -1, 64)) }

	str("id", c.ID)
	str("modelling_code_id", c.ModellingCodeID)
	str("component_scheme", c.ComponentScheme)
	num("ncomponents", float64(c.NComponents))
	num("sample_rate", c.SampleRate)
	num("receiver_depth", c.ReceiverDepth)
	num("source_depth_min", c.SourceDepthMin)
	num("source_depth_max", c.SourceDepthMax)
	num("source_depth_delta", c.SourceDepthDelta)
	num("distance_min", c.DistanceMin)
	num("distance_max", c.DistanceMax)
	num("distance_delta", c.DistanceDelta)
	num("earth_radius", c.EarthRadius)
	str("earthmodel_1d", canonicalModel(c.EarthModel1D))
	str("earthmodel_receiver_1d", canonicalModel(c.EarthModelReceiver1D))
	for _, p := range c.TabulatedPhases {
		str("phase."+norm.NFC.String(p.ID), p.Definition)
	}
	return []byte(b.String())
}

// Digest returns the domain-separated SHA-256 of the canonical form.
func (c *Config) Digest() [32]byte {
	return hashWithDomain(DomainConfig, c.Canonical())
}

// DigestHex returns Digest as a hex string.
func (c *Config) DigestHex() string {
	d := c.Digest()
	return hex.EncodeToString(d[:])
}

func canonicalModel(text string) string {
	if text == "" {
		return ""
	}
	m, err := earthmodel.ParseND(text)
	if err != nil {
		return text
	}
	return m.String()
}
