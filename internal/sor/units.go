package sor

// SpeedOfLight is the vacuum speed of light in meters per second.
const SpeedOfLight = 299792458.0

// TimeSeconds converts a raw time-of-flight field (100 ps units) to seconds.
func TimeSeconds(raw uint32) float64 {
	return float64(raw) * 1e-10
}

// GroupIndexValue converts the raw stored group index to its unitless value.
func GroupIndexValue(raw uint32) float64 {
	return float64(raw) / 100000
}

// BackscatterDB converts the raw backscatter coefficient to dB.
func BackscatterDB(raw uint16) float64 {
	return -float64(raw) / 10
}

// MilliDB converts a raw milli-dB field (losses, thresholds, reflectance,
// slopes) to dB.
func MilliDB(raw int32) float64 {
	return float64(raw) / 1000
}

// TenthNanometers converts a raw 0.1 nm wavelength field to nanometers.
// GenParams stores its nominal wavelength in whole nanometers instead; the
// scale is per-field, not global.
func TenthNanometers(raw uint16) float64 {
	return float64(raw) / 10
}

// Distance derives the one-way distance in meters from a time of flight and
// the fiber group index. The factor of two accounts for the round trip of
// the reflected pulse.
func Distance(timeSeconds, groupIndex float64) (float64, error) {
	if groupIndex <= 0 {
		return 0, ErrInvalidGroupIndex
	}
	return timeSeconds * SpeedOfLight / (2 * groupIndex), nil
}

// DecodeEventCode interprets the fixed-format event-type string. Character
// positions carry independent vocabularies; an unrecognized character at a
// classified position decodes to the explicit Unknown variant rather than
// failing the event.
func DecodeEventCode(code string) EventClass {
	class := EventClass{Code: code}
	if len(code) > 0 {
		switch code[0] {
		case '0':
			class.Reflection = NonReflective
		case '1':
			class.Reflection = Reflective
		case '2':
			class.Reflection = SaturatedReflective
		default:
			class.Reflection = ReflectionUnknown
		}
	}
	if len(code) > 1 {
		switch code[1] {
		case 'F':
			class.Origin = OriginEndOfFiber
		case 'A':
			class.Origin = OriginUserAdded
		case 'O':
			class.Origin = OriginOTDRFound
		case 'M':
			class.Origin = OriginUserMoved
		default:
			class.Origin = OriginUnknown
		}
	}
	if len(code) > 6 {
		switch code[6] {
		case 'L':
			class.Marker = MarkerLaunch
		case 'T':
			class.Marker = MarkerTail
		}
	}
	return class
}
