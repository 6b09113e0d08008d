// Package vosk adapts the Vosk recognizer to stt.Engine.
package vosk

import (
	"encoding/json"
	"fmt"

	vapi "github.com/alphacep/vosk-api/go"

	"voxrelay/pkg/stt"
)

type engine struct {
	model *vapi.VoskModel
}

// Load loads a Vosk model directory. It satisfies stt.Loader.
func Load(modelPath string) (stt.Engine, error) {
	model, err := vapi.NewModel(modelPath)
	if err != nil {
		return nil, fmt.Errorf("load vosk model: %w", err)
	}
	return &engine{model: model}, nil
}

func (e *engine) NewRecognizer(sampleRate int) (stt.Recognizer, error) {
	rec, err := vapi.NewRecognizer(e.model, float64(sampleRate))
	if err != nil {
		return nil, fmt.Errorf("create vosk recognizer: %w", err)
	}
	// word timings end up in the stored metadata
	rec.SetWords(1)
	return &recognizer{rec: rec}, nil
}

func (e *engine) Close() error {
	if e.model != nil {
		e.model.Free()
		e.model = nil
	}
	return nil
}

type recognizer struct {
	rec *vapi.VoskRecognizer
}

func (r *recognizer) AcceptWaveform(chunk []byte) error {
	if r.rec.AcceptWaveform(chunk) < 0 {
		return fmt.Errorf("vosk rejected waveform chunk")
	}
	return nil
}

func (r *recognizer) FinalResult() (map[string]any, error) {
	var payload map[string]any
	if err := json.Unmarshal([]byte(r.rec.FinalResult()), &payload); err != nil {
		return nil, fmt.Errorf("unmarshal vosk result: %w", err)
	}
	return payload, nil
}

func (r *recognizer) Close() {
	r.rec.Free()
}
