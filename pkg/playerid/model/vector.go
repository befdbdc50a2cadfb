package model

import (
	"encoding/json"
	"math"

	"gonum.org/v1/gonum/mat"
)

// FeatureVector is a fixed-length Re-ID embedding, unit-normalized on
// construction (I4). The engine is agnostic to the dimension, provided it
// is consistent for the lifetime of a run. Values are stored as float64 in
// a gonum vector for numerical work (the teacher's idiom throughout
// distances.go / tracked_object.go), but marshal to JSON as float32-rounded
// numbers per spec.md's "32-bit floats" data model.
type FeatureVector struct {
	v *mat.VecDense
}

// NewFeatureVector builds a unit-normalized FeatureVector from raw values.
// A zero (or near-zero) vector is returned un-normalized rather than
// dividing by zero.
func NewFeatureVector(values []float32) FeatureVector {
	if len(values) == 0 {
		return FeatureVector{}
	}
	raw := make([]float64, len(values))
	var sumSq float64
	for i, f := range values {
		raw[i] = float64(f)
		sumSq += raw[i] * raw[i]
	}
	norm := math.Sqrt(sumSq)
	if norm > 1e-8 {
		for i := range raw {
			raw[i] /= norm
		}
	}
	return FeatureVector{v: mat.NewVecDense(len(raw), raw)}
}

// Empty reports whether the vector carries no data (the "optional
// FeatureVector" case in the data model).
func (f FeatureVector) Empty() bool {
	return f.v == nil || f.v.Len() == 0
}

// Len returns the vector's dimensionality.
func (f FeatureVector) Len() int {
	if f.v == nil {
		return 0
	}
	return f.v.Len()
}

// Values returns the vector contents as float32, the wire representation.
func (f FeatureVector) Values() []float32 {
	if f.v == nil {
		return nil
	}
	out := make([]float32, f.v.Len())
	for i := 0; i < f.v.Len(); i++ {
		out[i] = float32(f.v.AtVec(i))
	}
	return out
}

func (f FeatureVector) norm() float64 {
	if f.v == nil {
		return 0
	}
	return mat.Norm(f.v, 2)
}

// Cosine computes cosine similarity between two unit-normalized vectors,
// per I4: returns 0 when either norm is below 1e-8 rather than dividing by
// a near-zero denominator.
func Cosine(a, b FeatureVector) float64 {
	if a.Empty() || b.Empty() {
		return 0
	}
	if a.Len() != b.Len() {
		return 0
	}
	na, nb := a.norm(), b.norm()
	if na < 1e-8 || nb < 1e-8 {
		return 0
	}
	dot := mat.Dot(a.v, b.v)
	return dot / (na * nb)
}

// MarshalJSON encodes the vector as a plain JSON array of numbers.
func (f FeatureVector) MarshalJSON() ([]byte, error) {
	if f.Empty() {
		return []byte("null"), nil
	}
	return json.Marshal(f.Values())
}

// UnmarshalJSON decodes a JSON array of numbers into a unit-normalized
// FeatureVector (renormalized on load, matching "unit-normalized on write").
func (f *FeatureVector) UnmarshalJSON(data []byte) error {
	var raw []float32
	if string(data) == "null" {
		*f = FeatureVector{}
		return nil
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*f = NewFeatureVector(raw)
	return nil
}
