// Package engine computes beam deflection for a uniformly distributed load on
// a simply supported span: δ = 5 w L⁴ / (384 E I).
package engine

import "fmt"

// ComputeDeflectionMm returns the mid-span deflection in millimeters.
// Inputs: span length in meters, UDL in kN/m, elastic modulus in GPa, moment
// of inertia in cm⁴. Pure and deterministic; no I/O.
func ComputeDeflectionMm(lengthM, udlKnM, elasticityGPa, inertiaCm4 float64) (float64, error) {
	if lengthM <= 0 {
		return 0, fmt.Errorf("length_m must be > 0, got %v", lengthM)
	}
	if elasticityGPa <= 0 {
		return 0, fmt.Errorf("elasticity_gpa must be > 0, got %v", elasticityGPa)
	}
	if inertiaCm4 <= 0 {
		return 0, fmt.Errorf("inertia_cm4 must be > 0, got %v", inertiaCm4)
	}

	wNPerM := udlKnM * 1000.0
	ePa := elasticityGPa * 1e9
	iM4 := inertiaCm4 * 1e-8
	deltaM := (5.0 * wNPerM * lengthM * lengthM * lengthM * lengthM) / (384.0 * ePa * iM4)
	return deltaM * 1000.0, nil
}
