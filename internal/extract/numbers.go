package extract

import (
	"strings"

	"github.com/shopspring/decimal"
)

var unitWords = map[string]int64{
	"zero": 0, "one": 1, "two": 2, "three": 3, "four": 4,
	"five": 5, "six": 6, "seven": 7, "eight": 8, "nine": 9,
	"ten": 10, "eleven": 11, "twelve": 12, "thirteen": 13, "fourteen": 14,
	"fifteen": 15, "sixteen": 16, "seventeen": 17, "eighteen": 18, "nineteen": 19,
}

var tensWords = map[string]int64{
	"twenty": 20, "thirty": 30, "forty": 40, "fifty": 50,
	"sixty": 60, "seventy": 70, "eighty": 80, "ninety": 90,
}

var scaleWords = map[string]int64{
	"hundred":  100,
	"thousand": 1000,
}

func isNumberWord(w string) bool {
	w = strings.ToLower(w)
	if _, ok := unitWords[w]; ok {
		return true
	}
	if _, ok := tensWords[w]; ok {
		return true
	}
	_, ok := scaleWords[w]
	return ok
}

// parseNumberWords reads a spelled-out number starting at words[start].
// It returns the value, the count of words consumed, and whether a number
// was found at all. Hyphenated forms ("forty-five") are expected to have
// been split before this is called.
func parseNumberWords(words []string, start int) (decimal.Decimal, int, bool) {
	var total, current int64
	consumed := 0
	seen := false

	for i := start; i < len(words); i++ {
		w := strings.ToLower(words[i])
		if w == "and" && seen {
			// "one hundred and twenty": only glue, never a leading word
			if i+1 < len(words) && isNumberWord(words[i+1]) {
				consumed++
				continue
			}
			break
		}
		if v, ok := unitWords[w]; ok {
			current += v
		} else if v, ok := tensWords[w]; ok {
			current += v
		} else if v, ok := scaleWords[w]; ok {
			if current == 0 {
				current = 1 // "a hundred" style lead-ins drop the one
			}
			if v == 100 {
				current *= v
			} else {
				total += current * v
				current = 0
			}
		} else {
			break
		}
		seen = true
		consumed++
	}

	if !seen {
		return decimal.Zero, 0, false
	}
	return decimal.NewFromInt(total + current), consumed, true
}
