/*
Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package resources defines the canonical resource vector used throughout
// the scheduler and centralizes quantity parsing so unit conversions never
// leak into placement code.
package resources

import (
	"k8s.io/apimachinery/pkg/api/resource"
)

// R is a resource vector: CPU in whole cores (fractional allowed), memory
// in mebibytes.
type R struct {
	CPU    float64
	Memory float64
}

// Zero reports whether both components are exactly zero.
func (r R) Zero() bool {
	return r.CPU == 0 && r.Memory == 0
}

// LessEq reports whether r is componentwise less than or equal to other.
func (r R) LessEq(other R) bool {
	return r.CPU <= other.CPU && r.Memory <= other.Memory
}

// Sub returns r-other, clamping each component at zero.
func (r R) Sub(other R) R {
	return R{CPU: clamp(r.CPU - other.CPU), Memory: clamp(r.Memory - other.Memory)}
}

// Add returns the componentwise sum of r and other.
func (r R) Add(other R) R {
	return R{CPU: r.CPU + other.CPU, Memory: r.Memory + other.Memory}
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}

// ParseCPU converts a quantity string ("250m", "2n", "4") to whole cores.
// An unparseable value returns an error rather than a silent zero so that
// callers can decide whether the surrounding record is still admissible.
func ParseCPU(s string) (float64, error) {
	q, err := resource.ParseQuantity(s)
	if err != nil {
		return 0, err
	}
	// AsApproximateFloat64 keeps sub-millicore precision for "n"
	// (nanocores) quantities, which MilliValue would round up to a whole
	// millicore.
	return q.AsApproximateFloat64(), nil
}

// ParseMemory converts a quantity string ("512Mi", "1Gi", "1024") to
// mebibytes.
func ParseMemory(s string) (float64, error) {
	q, err := resource.ParseQuantity(s)
	if err != nil {
		return 0, err
	}
	return q.AsApproximateFloat64() / (1024 * 1024), nil
}

// FormatCPU renders cores back into a canonical decimal quantity string
// ("500m", "2"), the inverse of ParseCPU. Precision below one millicore
// is dropped.
func FormatCPU(cores float64) string {
	q := resource.NewMilliQuantity(int64(cores*1000), resource.DecimalSI)
	return q.String()
}

// FormatMemory renders mebibytes back into a canonical binary-SI quantity
// string ("512Mi", "1Gi").
func FormatMemory(mib float64) string {
	q := resource.NewQuantity(int64(mib*1024*1024), resource.BinarySI)
	return q.String()
}

// CoresFromQuantity converts an already-parsed resource.Quantity (as found
// on a container's resource requests/limits) to whole cores.
func CoresFromQuantity(q resource.Quantity) float64 {
	return float64(q.MilliValue()) / 1000.0
}

// MiBFromQuantity converts an already-parsed resource.Quantity to mebibytes.
func MiBFromQuantity(q resource.Quantity) float64 {
	return q.AsApproximateFloat64() / (1024 * 1024)
}
