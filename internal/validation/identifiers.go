// Package validation checks identifiers, entities and the regulatory rules a
// DPS must satisfy before it is built. Every function here is pure.
package validation

var (
	cnpjWeights1 = []int{5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2}
	cnpjWeights2 = []int{6, 5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2}
	cpfWeights1  = []int{10, 9, 8, 7, 6, 5, 4, 3, 2}
	cpfWeights2  = []int{11, 10, 9, 8, 7, 6, 5, 4, 3, 2}
)

// IsCNPJ reports whether s is a 14-digit CNPJ with valid check digits
func IsCNPJ(s string) bool {
	return checkDigits(s, 14, cnpjWeights1, cnpjWeights2)
}

// IsCPF reports whether s is an 11-digit CPF with valid check digits
func IsCPF(s string) bool {
	return checkDigits(s, 11, cpfWeights1, cpfWeights2)
}

// IsMunicipalityCode reports whether s is a 7-digit IBGE municipality code
func IsMunicipalityCode(s string) bool {
	return isDigits(s, 7)
}

// IsTaxClassificationCode reports whether s is a 6-digit cTribNac
func IsTaxClassificationCode(s string) bool {
	return isDigits(s, 6)
}

// IsMunicipalTaxCode reports whether s is a 3-digit cTribMun
func IsMunicipalTaxCode(s string) bool {
	return isDigits(s, 3)
}

// IsPostalCode reports whether s is an 8-digit CEP
func IsPostalCode(s string) bool {
	return isDigits(s, 8)
}

// IsAccessKey reports whether s is a 50-digit NFS-e access key
func IsAccessKey(s string) bool {
	return isDigits(s, 50)
}

func checkDigits(s string, n int, w1, w2 []int) bool {
	if !isDigits(s, n) || repeated(s) {
		return false
	}
	d1 := mod11(s[:n-2], w1)
	d2 := mod11(s[:n-1], w2)
	return int(s[n-2]-'0') == d1 && int(s[n-1]-'0') == d2
}

func mod11(base string, weights []int) int {
	sum := 0
	for i, w := range weights {
		sum += int(base[i]-'0') * w
	}
	r := sum % 11
	if r < 2 {
		return 0
	}
	return 11 - r
}

func isDigits(s string, n int) bool {
	if len(s) != n {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// repeated catches 00000000000000, 11111111111 and friends, which pass
// the checksum but are never issued.
func repeated(s string) bool {
	for i := 1; i < len(s); i++ {
		if s[i] != s[0] {
			return false
		}
	}
	return true
}
