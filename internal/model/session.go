package model

import (
	"context"
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/jsmcel/guideitor/internal/domain"
)

var (
	ortInitOnce sync.Once
	ortInitErr  error
)

// initRuntime brings up the onnxruntime environment exactly once per process.
func initRuntime(libraryPath string) error {
	ortInitOnce.Do(func() {
		if libraryPath != "" {
			ort.SetSharedLibraryPath(libraryPath)
		}
		ortInitErr = ort.InitializeEnvironment()
	})
	return ortInitErr
}

// Handle is one loaded ONNX session plus the metadata the classifier needs.
// Read-only after creation; Run may be called concurrently.
type Handle struct {
	role       domain.ModelRole
	path       string
	labels     []string
	inputSize  int
	threshold  float64
	inputName  string
	outputName string
	session    *ort.DynamicAdvancedSession
}

// HandleSpec describes a model to load.
type HandleSpec struct {
	Role      domain.ModelRole
	Path      string
	Labels    []string
	InputSize int
	Threshold float64
}

func loadHandle(spec HandleSpec, libraryPath string) (*Handle, error) {
	if err := initRuntime(libraryPath); err != nil {
		return nil, fmt.Errorf("initialize onnxruntime: %w", err)
	}

	inputs, outputs, err := ort.GetInputOutputInfo(spec.Path)
	if err != nil {
		return nil, fmt.Errorf("read model metadata %s: %w", spec.Path, err)
	}
	if len(inputs) == 0 || len(outputs) == 0 {
		return nil, fmt.Errorf("model %s declares no inputs or outputs", spec.Path)
	}

	session, err := ort.NewDynamicAdvancedSession(spec.Path,
		[]string{inputs[0].Name}, []string{outputs[0].Name}, nil)
	if err != nil {
		return nil, fmt.Errorf("create session %s: %w", spec.Path, err)
	}

	return &Handle{
		role:       spec.Role,
		path:       spec.Path,
		labels:     spec.Labels,
		inputSize:  spec.InputSize,
		threshold:  spec.Threshold,
		inputName:  inputs[0].Name,
		outputName: outputs[0].Name,
		session:    session,
	}, nil
}

func (h *Handle) Role() domain.ModelRole { return h.role }
func (h *Handle) Labels() []string       { return h.labels }
func (h *Handle) InputSize() int         { return h.inputSize }
func (h *Handle) Threshold() float64     { return h.threshold }

// Run executes one inference over an NCHW float tensor and returns the raw
// logits aligned with Labels. The context is advisory: it is checked before
// the call, but a running inference is not cancelled.
func (h *Handle) Run(ctx context.Context, input []float32) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	expected := 3 * h.inputSize * h.inputSize
	if len(input) != expected {
		return nil, fmt.Errorf("input length %d, model expects %d", len(input), expected)
	}

	inputShape := ort.NewShape(1, 3, int64(h.inputSize), int64(h.inputSize))
	inputTensor, err := ort.NewTensor(inputShape, input)
	if err != nil {
		return nil, fmt.Errorf("create input tensor: %w", err)
	}
	defer inputTensor.Destroy()

	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(len(h.labels))))
	if err != nil {
		return nil, fmt.Errorf("create output tensor: %w", err)
	}
	defer outputTensor.Destroy()

	// The onnxruntime session is safe for concurrent Run; each call owns its
	// own input/output tensors.
	if err := h.session.Run([]ort.Value{inputTensor}, []ort.Value{outputTensor}); err != nil {
		return nil, fmt.Errorf("run inference: %w", err)
	}

	data := outputTensor.GetData()
	logits := make([]float32, len(data))
	copy(logits, data)
	return logits, nil
}

// Close releases the underlying session.
func (h *Handle) Close() error {
	if h.session == nil {
		return nil
	}
	err := h.session.Destroy()
	h.session = nil
	return err
}
