package vin

// Validation is the result of the structural check. KnownManufacturer is
// informational: an unknown WMI withholds a scoring bonus but never rejects.
type Validation struct {
	Structural        bool
	KnownManufacturer bool
}

// Validate runs the ordered structural checks, short-circuiting on the first
// hard failure: length, alphabet, check-digit slot, model-year slot, then the
// soft WMI membership lookup.
func Validate(s string) Validation {
	if len(s) != Length {
		return Validation{}
	}
	for i := 0; i < len(s); i++ {
		if !isVINChar(s[i]) {
			return Validation{}
		}
	}
	if !isCheckDigitChar(s[checkDigitIndex]) {
		return Validation{}
	}
	switch s[modelYearIndex] {
	case 'I', 'O', 'Q':
		return Validation{}
	}
	_, known := wmiTable[s[:3]]
	return Validation{Structural: true, KnownManufacturer: known}
}

// IsValid reports whether s passes the hard structural checks.
func IsValid(s string) bool {
	return Validate(s).Structural
}
