package screening

// HasAdjacentRepetition reports whether any two neighbouring characters of s
// are equal. Strings shorter than two characters have no adjacent pair.
func HasAdjacentRepetition(s string) bool {
	var prev rune
	first := true
	for _, r := range s {
		if !first && r == prev {
			return true
		}
		prev = r
		first = false
	}
	return false
}

// IsStrictSequence reports whether every character of s is exactly one code
// point above the character before it ("ABCDE", "1234").
//
// Strings of length zero or one are sequences by definition. The check is not
// limited to letters or digits: "YZ[" is a sequence too. Callers only pass
// substrings that already passed the letter/digit mask.
func IsStrictSequence(s string) bool {
	var prev rune
	first := true
	for _, r := range s {
		if !first && r != prev+1 {
			return false
		}
		prev = r
		first = false
	}
	return true
}
