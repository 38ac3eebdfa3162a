// Package onnx serves prediction models through ONNX Runtime.
//
// A model directory holds config.yml (input names, prediction_type and,
// for iRT models, rescaling parameters) and model.onnx.
package onnx

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/ChrisMcGann/PrositGo/pkg/predict"
	"github.com/ChrisMcGann/PrositGo/pkg/tensor"
)

const (
	configFile        = "config.yml"
	modelFile         = "model.onnx"
	defaultOutputName = "output"
)

var envMu sync.Mutex

// Init loads the ONNX Runtime shared library and creates the runtime
// environment. It is safe to call more than once.
func Init(libPath string) error {
	envMu.Lock()
	defer envMu.Unlock()
	if ort.IsInitialized() {
		return nil
	}
	if libPath != "" {
		ort.SetSharedLibraryPath(libPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("initialize onnxruntime: %w", err)
	}
	return nil
}

// Shutdown destroys the runtime environment. Sessions must be closed first.
func Shutdown() error {
	envMu.Lock()
	defer envMu.Unlock()
	if !ort.IsInitialized() {
		return nil
	}
	return ort.DestroyEnvironment()
}

// Session is one loaded model. It implements predict.Model.
type Session struct {
	sess   *ort.DynamicAdvancedSession
	inputs []string
	output string
	width  int64
	mu     sync.Mutex
}

// Options tune session creation.
type Options struct {
	IntraOpThreads int
}

// Load reads the model directory and opens a session. The returned handle
// owns the session; close it with the returned Session.
func Load(dir string, opts Options) (*predict.Handle, *Session, error) {
	mc, err := predict.LoadModelConfig(filepath.Join(dir, configFile))
	if err != nil {
		return nil, nil, err
	}
	cfg, err := predict.NewConfig(mc)
	if err != nil {
		return nil, nil, fmt.Errorf("model %s: %w", dir, err)
	}

	modelPath := filepath.Join(dir, modelFile)
	if _, err := os.Stat(modelPath); err != nil {
		return nil, nil, fmt.Errorf("model %s: %w", dir, err)
	}
	if !ort.IsInitialized() {
		return nil, nil, errors.New("onnxruntime is not initialized, call onnx.Init first")
	}

	output := mc.Output
	if output == "" {
		output = defaultOutputName
	}

	width := OutputWidth(cfg)
	_, outputs, err := ort.GetInputOutputInfoWithOptions(modelPath, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", modelPath, err)
	}
	if err := checkOutput(outputs, output, width); err != nil {
		return nil, nil, fmt.Errorf("model %s: %w", dir, err)
	}

	var so *ort.SessionOptions
	if opts.IntraOpThreads > 0 {
		so, err = ort.NewSessionOptions()
		if err != nil {
			return nil, nil, fmt.Errorf("session options: %w", err)
		}
		defer so.Destroy()
		if err := so.SetIntraOpNumThreads(opts.IntraOpThreads); err != nil {
			return nil, nil, fmt.Errorf("session options: %w", err)
		}
	}

	sess, err := ort.NewDynamicAdvancedSession(modelPath, cfg.Inputs, []string{output}, so)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", modelPath, err)
	}

	s := &Session{
		sess:   sess,
		inputs: cfg.Inputs,
		output: output,
		width:  width,
	}
	return &predict.Handle{Model: s, Config: cfg}, s, nil
}

// OutputWidth is the number of output values per peptide for cfg.
func OutputWidth(cfg predict.Config) int64 {
	switch cfg.Kind.(type) {
	case predict.Intensity:
		return int64(cfg.Layout.Width())
	default:
		return 1
	}
}

// checkOutput verifies that the named output yields width values per
// peptide. Dynamic dimensions after the batch axis are accepted.
func checkOutput(outputs []ort.InputOutputInfo, name string, width int64) error {
	for _, o := range outputs {
		if o.Name != name {
			continue
		}
		per := int64(1)
		if len(o.Dimensions) > 1 {
			for _, d := range o.Dimensions[1:] {
				if d <= 0 {
					return nil
				}
				per *= d
			}
		}
		if per != width {
			return fmt.Errorf("output %s %v has %d values per peptide, want %d: %w",
				name, o.Dimensions, per, width, tensor.ErrShapeMismatch)
		}
		return nil
	}
	names := make([]string, len(outputs))
	for i, o := range outputs {
		names[i] = o.Name
	}
	return fmt.Errorf("no output named %s, model has %v", name, names)
}

// Predict runs one inference call.
func (s *Session) Predict(inputs []predict.Input) ([][]float32, error) {
	if len(inputs) != len(s.inputs) {
		return nil, fmt.Errorf("model expects %d inputs, got %d", len(s.inputs), len(inputs))
	}
	if len(inputs) == 0 || len(inputs[0].Shape) == 0 {
		return nil, errors.New("empty input")
	}
	rows := inputs[0].Shape[0]

	s.mu.Lock()
	defer s.mu.Unlock()

	values := make([]ort.Value, 0, len(inputs))
	defer func() {
		for _, v := range values {
			v.Destroy()
		}
	}()
	for _, in := range inputs {
		v, err := newValue(in)
		if err != nil {
			return nil, err
		}
		values = append(values, v)
	}

	out, err := ort.NewEmptyTensor[float32](ort.NewShape(rows, s.width))
	if err != nil {
		return nil, fmt.Errorf("allocate output: %w", err)
	}
	defer out.Destroy()

	if err := s.sess.Run(values, []ort.Value{out}); err != nil {
		return nil, fmt.Errorf("run session: %w", err)
	}

	data := out.GetData()
	result := make([][]float32, rows)
	for i := range result {
		row := make([]float32, s.width)
		copy(row, data[int64(i)*s.width:int64(i+1)*s.width])
		result[i] = row
	}
	return result, nil
}

func newValue(in predict.Input) (ort.Value, error) {
	shape := ort.NewShape(in.Shape...)
	switch {
	case in.Int != nil:
		t, err := ort.NewTensor(shape, in.Int)
		if err != nil {
			return nil, fmt.Errorf("input %s: %w", in.Name, err)
		}
		return t, nil
	case in.Float != nil:
		t, err := ort.NewTensor(shape, in.Float)
		if err != nil {
			return nil, fmt.Errorf("input %s: %w", in.Name, err)
		}
		return t, nil
	default:
		return nil, fmt.Errorf("input %s has no data", in.Name)
	}
}

// Close releases the session.
func (s *Session) Close() error {
	if s == nil || s.sess == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.sess.Destroy()
	s.sess = nil
	return err
}
