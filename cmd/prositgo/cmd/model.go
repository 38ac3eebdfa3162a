package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/ChrisMcGann/PrositGo/pkg/model/onnx"
	"github.com/ChrisMcGann/PrositGo/pkg/predict"
)

var errNoModelDir = errors.New("--model-dir is required")

// loaded holds the sessions behind a Predictor
type loaded struct {
	predictor *predict.Predictor
	sessions  []*onnx.Session
}

// Close releases sessions and the runtime environment
func (l *loaded) Close() {
	for _, s := range l.sessions {
		if err := s.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close model session: %v\n", err)
		}
	}
	if err := onnx.Shutdown(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to shut down onnxruntime: %v\n", err)
	}
}

// loadPredictor loads the fragmentation model and, if set, the iRT model
func loadPredictor() (*loaded, error) {
	if modelDir == "" {
		return nil, errNoModelDir
	}
	for _, dir := range []string{modelDir, irtModelDir} {
		if dir == "" {
			continue
		}
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			return nil, fmt.Errorf("model directory not found: %s", dir)
		}
	}
	if err := onnx.Init(ortLib); err != nil {
		return nil, err
	}

	opts := onnx.Options{IntraOpThreads: threads}
	l := &loaded{predictor: &predict.Predictor{}}

	h, sess, err := onnx.Load(modelDir, opts)
	if err != nil {
		l.Close()
		return nil, fmt.Errorf("fragmentation model: %w", err)
	}
	l.sessions = append(l.sessions, sess)
	if _, ok := h.Config.Kind.(predict.Intensity); !ok {
		l.Close()
		return nil, fmt.Errorf("%s is a %s model, not a fragmentation model", modelDir, predict.KindName(h.Config.Kind))
	}
	l.predictor.Spectra = h

	if irtModelDir != "" {
		h, sess, err := onnx.Load(irtModelDir, opts)
		if err != nil {
			l.Close()
			return nil, fmt.Errorf("iRT model: %w", err)
		}
		l.sessions = append(l.sessions, sess)
		if _, ok := h.Config.Kind.(predict.RetentionTime); !ok {
			l.Close()
			return nil, fmt.Errorf("%s is a %s model, not an iRT model", irtModelDir, predict.KindName(h.Config.Kind))
		}
		l.predictor.IRT = h
	}

	fmt.Printf("Loaded model: %s\n", modelDir)
	if irtModelDir != "" {
		fmt.Printf("Loaded iRT model: %s\n", irtModelDir)
	}
	return l, nil
}
