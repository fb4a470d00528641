package classifier

import (
	"context"
	"hash/fnv"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DetailedDetection is the verbose result of Detector.DetectDetailed.
type DetailedDetection struct {
	Code             string
	Confidence       float64
	FallbackUsed     bool
	ProcessingTimeMs uint64
}

// Detector performs language detection with a confidence floor and a
// configured fallback. It never fails: any internal uncertainty degrades
// to the fallback language rather than returning an error.
type Detector struct {
	supported  map[string]bool
	fallback   string
	minConf    float64
	cache      *lru.Cache[uint64, DetailedDetection]
}

// NewDetector builds a Detector over the given supported language codes.
func NewDetector(supported []string, fallback string, minConfidence float64) *Detector {
	set := make(map[string]bool, len(supported))
	for _, s := range supported {
		set[s] = true
	}
	cache, _ := lru.New[uint64, DetailedDetection](4096)
	return &Detector{supported: set, fallback: fallback, minConf: minConfidence, cache: cache}
}

// IsSupported reports whether code is one of the detector's configured
// languages.
func (d *Detector) IsSupported(code string) bool {
	return d.supported[code]
}

func fingerprintText(text string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	return h.Sum64()
}

// heuristicDetect is a lightweight, dependency-free stand-in for a real
// language-ID model: it scores character-set and stopword hints. The
// registered inference models are the source of classification truth;
// language detection only needs to be good enough to pick a
// tokenization/pattern set for rule matching.
func heuristicDetect(text string) (string, float64) {
	lower := strings.ToLower(text)
	type hint struct {
		lang  string
		words []string
	}
	hints := []hint{
		{"en", []string{" the ", " and ", " you ", " is ", " are "}},
		{"es", []string{" el ", " la ", " de ", " que ", " por "}},
		{"fr", []string{" le ", " la ", " de ", " et ", " est "}},
		{"de", []string{" der ", " die ", " und ", " ist ", " nicht "}},
		{"pt", []string{" o ", " de ", " que ", " para ", " com "}},
	}
	padded := " " + lower + " "
	best, bestScore := "en", 0
	for _, h := range hints {
		score := 0
		for _, w := range h.words {
			if strings.Contains(padded, w) {
				score++
			}
		}
		if score > bestScore {
			bestScore = score
			best = h.lang
		}
	}
	if bestScore == 0 {
		return "en", 0.35
	}
	confidence := 0.5 + 0.1*float64(bestScore)
	if confidence > 0.97 {
		confidence = 0.97
	}
	return best, confidence
}

// DetectDetailed runs detection and reports confidence and whether the
// fallback path was used. Results are cached by a fingerprint of text.
func (d *Detector) DetectDetailed(ctx context.Context, text string) DetailedDetection {
	start := time.Now()
	key := fingerprintText(text)
	if d.cache != nil {
		if cached, ok := d.cache.Get(key); ok {
			return cached
		}
	}

	code, confidence := heuristicDetect(text)
	result := DetailedDetection{
		Code:             code,
		Confidence:       confidence,
		ProcessingTimeMs: uint64(time.Since(start).Milliseconds()),
	}
	if !d.supported[code] || confidence < d.minConf {
		result = DetailedDetection{
			Code:             d.fallback,
			Confidence:       0.3,
			FallbackUsed:     true,
			ProcessingTimeMs: result.ProcessingTimeMs,
		}
	}

	if d.cache != nil {
		d.cache.Add(key, result)
	}
	return result
}

// Detect returns just the language code, for callers that don't need the
// detailed breakdown.
func (d *Detector) Detect(ctx context.Context, text string) string {
	return d.DetectDetailed(ctx, text).Code
}
