package classifier

import "time"

// Config tunes the production classifier and its sub-components. All
// fields have sane defaults via DefaultConfig.
type Config struct {
	MinConfidenceThreshold float64
	MaxProcessingTime      time.Duration
	EnableLanguageDetection bool
	EnableMLInference      bool
	EnableRuleBased        bool
	EnableSignalProcessing bool
	BatchProcessing        bool
	CacheResults           bool
	BatchSize              int
	CacheSize              int
	ModelVersion           string

	SupportedLanguages []string
	DefaultLanguage    string
	MinLangConfidence   float64

	MaxConcurrentInferences int
	MLInferenceTimeout      time.Duration
	ModelHealthCheckInterval time.Duration
}

// DefaultConfig returns the baseline tuning values: min_confidence_threshold
// 0.6, batch size 32, fallback language threshold 0.7.
func DefaultConfig() Config {
	return Config{
		MinConfidenceThreshold:   0.6,
		MaxProcessingTime:        5 * time.Second,
		EnableLanguageDetection:  true,
		EnableMLInference:        true,
		EnableRuleBased:          true,
		EnableSignalProcessing:   true,
		BatchProcessing:          true,
		CacheResults:             true,
		BatchSize:                32,
		CacheSize:                10000,
		ModelVersion:             "production",
		SupportedLanguages:       []string{"en", "es", "fr", "de", "pt"},
		DefaultLanguage:          "en",
		MinLangConfidence:        0.7,
		MaxConcurrentInferences:  16,
		MLInferenceTimeout:       2 * time.Second,
		ModelHealthCheckInterval: 30 * time.Second,
	}
}
