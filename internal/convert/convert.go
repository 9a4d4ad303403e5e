// Package convert holds the transfer functions turning raw ADC counts into
// physical units, per the sensor datasheets.
package convert

import "strings"

// operating voltage of the BITalino analog front end
const vcc = 3.3

// ecgGain is the ECG sensor amplifier gain.
const ecgGain = 1100

// Kind identifies the sensor wired to a channel.
type Kind string

const (
	EDA Kind = "EDA"
	ECG Kind = "ECG"
	RAW Kind = "RAW"
)

// ParseKind normalizes a sensor kind name. Unknown kinds come back as RAW
// with ok=false so the caller can log the downgrade.
func ParseKind(s string) (Kind, bool) {
	switch Kind(strings.ToUpper(strings.TrimSpace(s))) {
	case EDA:
		return EDA, true
	case ECG:
		return ECG, true
	case RAW:
		return RAW, true
	default:
		return RAW, false
	}
}

// Unit returns the physical unit the kind converts into.
func (k Kind) Unit() string {
	switch k {
	case EDA:
		return "uS"
	case ECG:
		return "mV"
	default:
		return "adc"
	}
}

// Apply converts one raw count sampled at the given ADC resolution.
func (k Kind) Apply(raw float64, bits int) float64 {
	switch k {
	case EDA:
		return EDAMicroSiemens(raw, bits)
	case ECG:
		return ECGMilliVolts(raw, bits)
	default:
		return raw
	}
}

// EDAMicroSiemens converts a raw EDA count to skin conductance in µS:
//
//	EDA = raw * VCC / (0.132 * 2^bits)
func EDAMicroSiemens(raw float64, bits int) float64 {
	return raw * vcc / (0.132 * float64(int(1)<<uint(bits)))
}

// ECGMilliVolts converts a raw ECG count to millivolts:
//
//	ECG = ((raw / 2^bits) - 0.5) * (VCC / G) * 1000
func ECGMilliVolts(raw float64, bits int) float64 {
	v := raw/float64(int(1)<<uint(bits)) - 0.5
	return v * (vcc / ecgGain) * 1000
}
