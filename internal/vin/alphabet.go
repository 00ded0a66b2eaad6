package vin

// Length is the only VIN length a scan is ever allowed to report.
const Length = 17

const (
	checkDigitIndex = 8
	modelYearIndex  = 9
	plantCodeIndex  = 10
)

// The VIN alphabet excludes I, O and Q.
func isVINChar(c byte) bool {
	switch {
	case c >= '0' && c <= '9':
		return true
	case c >= 'A' && c <= 'Z':
		return c != 'I' && c != 'O' && c != 'Q'
	default:
		return false
	}
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isLetter(c byte) bool {
	return c >= 'A' && c <= 'Z' && c != 'I' && c != 'O' && c != 'Q'
}

func isCheckDigitChar(c byte) bool {
	return isDigit(c) || c == 'X'
}

// Model-year slot additionally excludes U, Z and 0.
func isModelYearChar(c byte) bool {
	if isDigit(c) {
		return c != '0'
	}
	return isLetter(c) && c != 'U' && c != 'Z'
}

// wmiTable is the static manufacturer-prefix membership check. Absence here
// only withholds the known-manufacturer bonus, it never rejects a VIN.
var wmiTable = map[string]string{
	"1C4": "Chrysler",
	"1FA": "Ford",
	"1FT": "Ford",
	"1G1": "Chevrolet",
	"1GC": "Chevrolet",
	"1HG": "Honda",
	"1N4": "Nissan",
	"2C3": "Chrysler",
	"2HG": "Honda",
	"2T1": "Toyota",
	"3FA": "Ford",
	"3VW": "Volkswagen",
	"4T1": "Toyota",
	"5NP": "Hyundai",
	"5YJ": "Tesla",
	"JHM": "Honda",
	"JN1": "Nissan",
	"JTD": "Toyota",
	"KMH": "Hyundai",
	"KNA": "Kia",
	"SAL": "Land Rover",
	"VF1": "Renault",
	"WAU": "Audi",
	"WBA": "BMW",
	"WDB": "Mercedes-Benz",
	"WVW": "Volkswagen",
	"YV1": "Volvo",
	"ZFA": "Fiat",
}

// commonPrefixes are two-character manufacturer codes frequent enough to earn
// a scoring bonus on their own.
var commonPrefixes = map[string]struct{}{
	"1C": {}, "1F": {}, "1G": {}, "1H": {}, "1N": {},
	"2C": {}, "2H": {}, "2T": {}, "3V": {}, "4T": {},
	"5N": {}, "5Y": {}, "JH": {}, "JN": {}, "JT": {},
	"KM": {}, "KN": {}, "SA": {}, "VF": {}, "WA": {},
	"WB": {}, "WD": {}, "WV": {}, "YV": {}, "ZF": {},
}

// Manufacturer returns the maker behind a VIN's WMI, if the prefix is known.
func Manufacturer(s string) (string, bool) {
	if len(s) < 3 {
		return "", false
	}
	name, ok := wmiTable[s[:3]]
	return name, ok
}
