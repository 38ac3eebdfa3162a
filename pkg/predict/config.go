package predict

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/ChrisMcGann/PrositGo/pkg/core"
	"github.com/ChrisMcGann/PrositGo/pkg/sanitize"
	"github.com/ChrisMcGann/PrositGo/pkg/tensor"
)

var (
	// ErrUnknownPredictionType is returned for a prediction_type other than
	// "intensity" or "iRT".
	ErrUnknownPredictionType = errors.New("unknown prediction_type")
	// ErrMissingRescaling is returned for iRT models without rescaling parameters.
	ErrMissingRescaling = errors.New("missing iRT rescaling parameter")
)

// Kind is the closed set of prediction kinds: Intensity or RetentionTime.
type Kind interface {
	kind() string
}

// Intensity predicts fragment ion intensities.
type Intensity struct{}

func (Intensity) kind() string { return "intensity" }

// RetentionTime predicts iRT, rescaled as x*sqrt(Variance)+Mean.
type RetentionTime struct {
	Variance float64
	Mean     float64
}

func (RetentionTime) kind() string { return "iRT" }

// Rescale maps a raw model output to iRT units.
func (r RetentionTime) Rescale(x float64) float64 {
	return x*math.Sqrt(r.Variance) + r.Mean
}

// KindName returns the configuration name of k.
func KindName(k Kind) string {
	if k == nil {
		return ""
	}
	return k.kind()
}

// number accepts YAML scalars written either as numbers or quoted strings.
type number float64

func (n *number) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: expected a number", node.Line)
	}
	v, err := strconv.ParseFloat(node.Value, 64)
	if err != nil {
		return fmt.Errorf("line %d: invalid number '%s': %w", node.Line, node.Value, err)
	}
	*n = number(v)
	return nil
}

// ModelConfig mirrors the config.yml shipped with a model.
type ModelConfig struct {
	X                []string `yaml:"x"`
	PredictionType   string   `yaml:"prediction_type"`
	IRTRescalingVar  *number  `yaml:"iRT_rescaling_var"`
	IRTRescalingMean *number  `yaml:"iRT_rescaling_mean"`
	Output           string   `yaml:"output"`
}

// LoadModelConfig reads a model config.yml.
func LoadModelConfig(path string) (ModelConfig, error) {
	var mc ModelConfig
	data, err := os.ReadFile(path)
	if err != nil {
		return mc, fmt.Errorf("read model config: %w", err)
	}
	if err := yaml.Unmarshal(data, &mc); err != nil {
		return mc, fmt.Errorf("decode model config %s: %w", path, err)
	}
	return mc, nil
}

// ParseKind resolves the prediction kind of a model configuration.
func ParseKind(mc ModelConfig) (Kind, error) {
	switch mc.PredictionType {
	case "intensity":
		return Intensity{}, nil
	case "iRT":
		if mc.IRTRescalingVar == nil {
			return nil, fmt.Errorf("iRT_rescaling_var: %w", ErrMissingRescaling)
		}
		if mc.IRTRescalingMean == nil {
			return nil, fmt.Errorf("iRT_rescaling_mean: %w", ErrMissingRescaling)
		}
		if *mc.IRTRescalingVar < 0 {
			return nil, fmt.Errorf("iRT_rescaling_var must be non-negative, got %v", float64(*mc.IRTRescalingVar))
		}
		return RetentionTime{
			Variance: float64(*mc.IRTRescalingVar),
			Mean:     float64(*mc.IRTRescalingMean),
		}, nil
	default:
		return nil, fmt.Errorf("%q: %w", mc.PredictionType, ErrUnknownPredictionType)
	}
}

// Config is the validated configuration of one model handle.
type Config struct {
	Inputs    []string // batch keys fed to the model, in order
	Kind      Kind
	Layout    tensor.Layout
	Rules     sanitize.Rules
	BatchSize int
}

// NewConfig validates a model configuration and fills defaults.
func NewConfig(mc ModelConfig) (Config, error) {
	kind, err := ParseKind(mc)
	if err != nil {
		return Config{}, err
	}
	if len(mc.X) == 0 {
		return Config{}, errors.New("model config has no input names (x)")
	}
	layout := tensor.DefaultLayout()
	return Config{
		Inputs:    mc.X,
		Kind:      kind,
		Layout:    layout,
		Rules:     sanitize.DefaultRules(layout),
		BatchSize: core.PredBatchSize,
	}, nil
}
