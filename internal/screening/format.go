package screening

const (
	identifierLength = 10
	prefixLength     = 5
	digitsLength     = 4
)

// IsValidFormat reports whether s is a structurally valid PAN: five letters,
// four digits and a trailing letter, with no two neighbouring characters
// equal, and neither the letter prefix nor the digit block a straight run.
//
// Only upper-case ASCII letters are accepted; clean input first.
func IsValidFormat(s string) bool {
	return len(Violations(s)) == 0
}

// Violations lists every format rule s breaks, in rule order. A string of the
// wrong length reports only ViolationLength since no positional rule applies.
func Violations(s string) []Violation {
	runes := []rune(s)
	if len(runes) != identifierLength {
		return []Violation{ViolationLength}
	}

	var out []Violation
	prefix := runes[:prefixLength]
	digits := runes[prefixLength : prefixLength+digitsLength]
	check := runes[identifierLength-1]

	if !allRunes(prefix, isUpperLetter) {
		out = append(out, ViolationPrefix)
	}
	if !allRunes(digits, isDigit) {
		out = append(out, ViolationDigits)
	}
	if !isUpperLetter(check) {
		out = append(out, ViolationCheckLetter)
	}
	if HasAdjacentRepetition(s) {
		out = append(out, ViolationAdjacentRepetition)
	}
	if IsStrictSequence(string(prefix)) {
		out = append(out, ViolationSequentialPrefix)
	}
	if IsStrictSequence(string(digits)) {
		out = append(out, ViolationSequentialDigits)
	}
	return out
}

func allRunes(rs []rune, pred func(rune) bool) bool {
	for _, r := range rs {
		if !pred(r) {
			return false
		}
	}
	return true
}

func isUpperLetter(r rune) bool {
	return r >= 'A' && r <= 'Z'
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}
