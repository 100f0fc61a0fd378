package domain

import "strings"

// cfsPerCms is the exact conversion factor between cubic meters per second
// and cubic feet per second (0.3048^-3).
const cfsPerCms = 35.314666721

// CmsToCfs converts a discharge from cubic meters per second to cubic feet
// per second. Non-finite input propagates unchanged through the arithmetic.
func CmsToCfs(v float64) float64 { return v * cfsPerCms }

// CfsToCms converts a discharge from cubic feet per second to cubic meters
// per second.
func CfsToCms(v float64) float64 { return v / cfsPerCms }

// CToF converts Celsius to Fahrenheit.
func CToF(v float64) float64 { return v*9/5 + 32 }

// FToC converts Fahrenheit to Celsius.
func FToC(v float64) float64 { return (v - 32) * 5 / 9 }

// MmToIn converts millimeters to inches.
func MmToIn(v float64) float64 { return v / 25.4 }

// InToMm converts inches to millimeters.
func InToMm(v float64) float64 { return v * 25.4 }

// cmsTokens and cfsTokens are the unit labels seen across upstream payloads,
// normalized to lowercase with spaces removed.
var (
	cmsTokens = []string{"cms", "m3/s", "m^3/s", "m³/s", "m3s", "cubicmeterspersecond", "cubicmetrespersecond"}
	cfsTokens = []string{"cfs", "ft3/s", "ft^3/s", "ft³/s", "ft3s", "cubicfeetpersecond"}
)

// ToCfs converts a discharge value to CFS based on a free-text unit label.
// Matching is case- and space-insensitive. CFS-labeled and unrecognized
// labels pass the value through unchanged: on ambiguous input we never
// guess-convert.
func ToCfs(value float64, unitsLabel string) float64 {
	token := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(unitsLabel), " ", ""))
	for _, t := range cmsTokens {
		if token == t {
			return CmsToCfs(value)
		}
	}
	return value
}

// IsCfsLabel reports whether a free-text unit label denotes CFS.
func IsCfsLabel(unitsLabel string) bool {
	token := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(unitsLabel), " ", ""))
	for _, t := range cfsTokens {
		if token == t {
			return true
		}
	}
	return false
}
