package stat

import (
	"fmt"
	"sync"

	"github.com/axiomhq/hyperloglog"
	"github.com/cespare/xxhash/v2"
	"github.com/fxamacker/cbor/v2"
)

// Estimator precision is fixed for the whole system. Sketches built with other
// parameters cannot be merged, so they are rejected on load.
const (
	EstimatorLog2m         = 14
	EstimatorRegisterWidth = 4

	estimatorEnvelopeVersion = 1
)

// Estimator approximates the number of distinct users seen in a period.
// It is safe for concurrent use.
type Estimator struct {
	mu       sync.Mutex
	sketch   *hyperloglog.Sketch
	revision uint64
}

type estimatorEnvelope struct {
	Version       int    `cbor:"1,keyasint"`
	Log2m         int    `cbor:"2,keyasint"`
	RegisterWidth int    `cbor:"3,keyasint"`
	Sketch        []byte `cbor:"4,keyasint"`
}

func NewEstimator() *Estimator {
	return &Estimator{sketch: hyperloglog.New14()}
}

// HashIdentifier maps a user identifier to the 64-bit value fed to AddRaw.
// xxhash of the identifier bytes is stable across processes and nodes.
func HashIdentifier(id string) uint64 {
	return xxhash.Sum64String(id)
}

// AddRaw records one already-hashed observation.
func (e *Estimator) AddRaw(hash uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sketch.InsertHash(hash)
	e.revision++
}

func (e *Estimator) Estimate() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sketch.Estimate()
}

// Merge folds other into e. Both estimators share the system precision.
func (e *Estimator) Merge(other *Estimator) error {
	if other == nil || other == e {
		return nil
	}
	other.mu.Lock()
	snapshot := other.sketch.Clone()
	other.mu.Unlock()

	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.sketch.Merge(snapshot); err != nil {
		return fmt.Errorf("stat: merge estimator: %w", err)
	}
	e.revision++
	return nil
}

// Serialize returns the complete estimator state. It is captured under the
// estimator lock so a concurrent AddRaw never yields a torn buffer.
func (e *Estimator) Serialize() ([]byte, error) {
	data, _, err := e.snapshot()
	return data, err
}

// Revision increases on every mutation. The sketch encoding is not canonical,
// so callers compare revisions rather than bytes to detect changes.
func (e *Estimator) Revision() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.revision
}

func (e *Estimator) snapshot() ([]byte, uint64, error) {
	e.mu.Lock()
	raw, err := e.sketch.MarshalBinary()
	revision := e.revision
	e.mu.Unlock()
	if err != nil {
		return nil, 0, fmt.Errorf("stat: marshal estimator: %w", err)
	}
	data, err := cbor.Marshal(estimatorEnvelope{
		Version:       estimatorEnvelopeVersion,
		Log2m:         EstimatorLog2m,
		RegisterWidth: EstimatorRegisterWidth,
		Sketch:        raw,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("stat: encode estimator envelope: %w", err)
	}
	return data, revision, nil
}

// DeserializeEstimator restores an estimator produced by Serialize. Empty
// input yields an empty estimator.
func DeserializeEstimator(data []byte) (*Estimator, error) {
	if len(data) == 0 {
		return NewEstimator(), nil
	}
	var envelope estimatorEnvelope
	if err := cbor.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("stat: decode estimator envelope: %w", err)
	}
	if envelope.Version != estimatorEnvelopeVersion {
		return nil, fmt.Errorf("stat: unsupported estimator version %d", envelope.Version)
	}
	if envelope.Log2m != EstimatorLog2m || envelope.RegisterWidth != EstimatorRegisterWidth {
		return nil, fmt.Errorf(
			"stat: estimator precision mismatch: log2m=%d regwidth=%d",
			envelope.Log2m,
			envelope.RegisterWidth,
		)
	}
	sketch := hyperloglog.New14()
	if err := sketch.UnmarshalBinary(envelope.Sketch); err != nil {
		return nil, fmt.Errorf("stat: unmarshal estimator: %w", err)
	}
	return &Estimator{sketch: sketch}, nil
}
