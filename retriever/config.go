package retriever

import (
	"fmt"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// RerankMethod selects how merged passages are rescored.
type RerankMethod string

const (
	RerankNone         RerankMethod = "none"
	RerankCosine       RerankMethod = "cosine"
	RerankCrossEncoder RerankMethod = "cross_encoder"
)

// DefaultMergeStrategy is the merge strategy tag reported when none is configured.
const DefaultMergeStrategy = "weighted_dedup"

// Config controls a retrieval. A Retriever copies its Config at construction
// and never changes it afterwards.
type Config struct {
	EnableRecursion        bool         `yaml:"enable_recursion" json:"enable_recursion"`
	MaxRecursionDepth      int          `yaml:"max_recursion_depth" json:"max_recursion_depth"`
	InitialK               int          `yaml:"initial_k" json:"initial_k"`
	IntermediateK          int          `yaml:"intermediate_k" json:"intermediate_k"`
	FinalK                 int          `yaml:"final_k" json:"final_k"`
	MinConfidenceScore     float64      `yaml:"min_confidence_score" json:"min_confidence_score"`
	NumSubQuestions        int          `yaml:"num_sub_questions" json:"num_sub_questions"`
	RerankMethod           RerankMethod `yaml:"rerank_method" json:"rerank_method"`
	DeduplicationThreshold float64      `yaml:"deduplication_threshold" json:"deduplication_threshold"`
	MergeStrategy          string       `yaml:"merge_strategy" json:"merge_strategy"`
	MaxTotalQueries        int          `yaml:"max_total_queries" json:"max_total_queries"`
	MaxTotalDocuments      int          `yaml:"max_total_documents" json:"max_total_documents"`
}

// DefaultConfig returns the balanced preset.
func DefaultConfig() Config {
	cfg, _ := Preset(PresetBalanced)
	return cfg
}

// Validate checks that every field is within range.
func (c Config) Validate() error {
	var problems []string
	if c.MaxRecursionDepth < 1 {
		problems = append(problems, fmt.Sprintf("max_recursion_depth must be >= 1, got %d", c.MaxRecursionDepth))
	}
	if c.InitialK < 1 {
		problems = append(problems, fmt.Sprintf("initial_k must be >= 1, got %d", c.InitialK))
	}
	if c.IntermediateK < 1 {
		problems = append(problems, fmt.Sprintf("intermediate_k must be >= 1, got %d", c.IntermediateK))
	}
	if c.FinalK < 1 {
		problems = append(problems, fmt.Sprintf("final_k must be >= 1, got %d", c.FinalK))
	}
	if c.MinConfidenceScore < 0 || c.MinConfidenceScore > 1 {
		problems = append(problems, fmt.Sprintf("min_confidence_score must be in [0,1], got %v", c.MinConfidenceScore))
	}
	if c.NumSubQuestions < 0 {
		problems = append(problems, fmt.Sprintf("num_sub_questions must be >= 0, got %d", c.NumSubQuestions))
	}
	switch c.RerankMethod {
	case RerankNone, RerankCosine, RerankCrossEncoder:
	default:
		problems = append(problems, fmt.Sprintf("rerank_method must be one of none, cosine, cross_encoder, got %q", c.RerankMethod))
	}
	if c.DeduplicationThreshold < 0 || c.DeduplicationThreshold > 1 {
		problems = append(problems, fmt.Sprintf("deduplication_threshold must be in [0,1], got %v", c.DeduplicationThreshold))
	}
	if c.MaxTotalQueries < 1 {
		problems = append(problems, fmt.Sprintf("max_total_queries must be >= 1, got %d", c.MaxTotalQueries))
	}
	if c.MaxTotalDocuments < 1 {
		problems = append(problems, fmt.Sprintf("max_total_documents must be >= 1, got %d", c.MaxTotalDocuments))
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

// Preset names.
const (
	PresetLight       = "light"
	PresetBalanced    = "balanced"
	PresetDeep        = "deep"
	PresetSingleLayer = "single_layer"
)

// PresetInfo describes a named configuration.
type PresetInfo struct {
	Name             string `json:"name"`
	Description      string `json:"description"`
	EstimatedLatency string `json:"estimated_time"`
	UseCase          string `json:"use_case"`
	Config           Config `json:"config"`
}

func baseConfig() Config {
	return Config{
		EnableRecursion:        true,
		RerankMethod:           RerankCosine,
		DeduplicationThreshold: 0.85,
		MergeStrategy:          DefaultMergeStrategy,
		MaxTotalQueries:        20,
		MaxTotalDocuments:      100,
	}
}

func presetCatalogue() []PresetInfo {
	light := baseConfig()
	light.MaxRecursionDepth = 2
	light.InitialK = 5
	light.IntermediateK = 3
	light.FinalK = 3
	light.NumSubQuestions = 1
	light.MinConfidenceScore = 0.5

	balanced := baseConfig()
	balanced.MaxRecursionDepth = 3
	balanced.InitialK = 10
	balanced.IntermediateK = 5
	balanced.FinalK = 5
	balanced.NumSubQuestions = 2
	balanced.MinConfidenceScore = 0.6

	deep := baseConfig()
	deep.MaxRecursionDepth = 4
	deep.InitialK = 15
	deep.IntermediateK = 8
	deep.FinalK = 5
	deep.NumSubQuestions = 3
	deep.MinConfidenceScore = 0.7

	single := baseConfig()
	single.EnableRecursion = false
	single.MaxRecursionDepth = 1
	single.InitialK = 5
	single.IntermediateK = 5
	single.FinalK = 5
	single.NumSubQuestions = 2
	single.MinConfidenceScore = 0.6

	return []PresetInfo{
		{Name: PresetLight, Description: "Fast, shallow retrieval", EstimatedLatency: "~1s", UseCase: "Real-time queries, simple questions", Config: light},
		{Name: PresetBalanced, Description: "Recommended balanced approach", EstimatedLatency: "~2-3s", UseCase: "General questions, daily use", Config: balanced},
		{Name: PresetDeep, Description: "Deep exploration retrieval", EstimatedLatency: "~4-6s", UseCase: "Complex questions, research", Config: deep},
		{Name: PresetSingleLayer, Description: "Single layer retrieval only", EstimatedLatency: "~0.8s", UseCase: "Testing, disabling recursion", Config: single},
	}
}

// Presets returns the preset catalogue in display order.
func Presets() []PresetInfo {
	return presetCatalogue()
}

// Preset returns the configuration for a named preset.
// Names are case-insensitive and "single-layer" is accepted for "single_layer".
func Preset(name string) (Config, error) {
	normalized := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "-", "_")
	catalogue := presetCatalogue()
	i := slices.IndexFunc(catalogue, func(p PresetInfo) bool { return p.Name == normalized })
	if i < 0 {
		return Config{}, fmt.Errorf("%w: %q", ErrUnknownPreset, name)
	}
	return catalogue[i].Config, nil
}

// fileConfig is the on-disk shape: an optional preset plus overrides.
type fileConfig struct {
	Preset string `yaml:"preset"`
	Config `yaml:",inline"`
}

// ParseConfig reads a YAML configuration. Fields absent from data keep the
// values of the named preset, or of the balanced preset when none is named.
// The result is validated.
func ParseConfig(data []byte) (Config, error) {
	var header fileConfig
	if err := yaml.Unmarshal(data, &header); err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	base := DefaultConfig()
	if header.Preset != "" {
		var err error
		if base, err = Preset(header.Preset); err != nil {
			return Config{}, err
		}
	}

	fc := fileConfig{Config: base}
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := fc.Config.Validate(); err != nil {
		return Config{}, err
	}
	return fc.Config, nil
}

// LoadConfig reads and parses a YAML configuration file.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	return ParseConfig(data)
}
