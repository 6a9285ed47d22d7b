package detector

import (
	"regexp"
	"strconv"
	"strings"
)

// Direction of a threshold condition parsed from a market question.
type Direction string

const (
	DirectionAbove Direction = "above"
	DirectionBelow Direction = "below"
)

// Condition is the {asset, direction, threshold} triple extracted from a
// market question such as "Will BTC hit 150k by March?".
type Condition struct {
	Asset     string
	Direction Direction
	Threshold float64
}

var questionRe = regexp.MustCompile(
	`(?i)will\s+([a-z0-9$]+)\s+(?:be\s+|go\s+|trade\s+|stay\s+)?(hit|reach|above|exceed|break|below|under|drop\s+below|fall\s+under)\s+\$?([\d][\d,]*\.?\d*)\s*(k|m)?`,
)

// ParseQuestion extracts a threshold condition from question text. It
// returns false for questions that do not match any known pattern; callers
// skip those markets.
func ParseQuestion(text string) (Condition, bool) {
	m := questionRe.FindStringSubmatch(text)
	if m == nil {
		return Condition{}, false
	}

	raw := strings.ReplaceAll(m[3], ",", "")
	threshold, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return Condition{}, false
	}
	switch strings.ToLower(m[4]) {
	case "k":
		threshold *= 1_000
	case "m":
		threshold *= 1_000_000
	}

	dir := DirectionAbove
	switch strings.ToLower(strings.Join(strings.Fields(m[2]), " ")) {
	case "below", "under", "drop below", "fall under":
		dir = DirectionBelow
	}

	return Condition{
		Asset:     strings.ToUpper(strings.TrimPrefix(strings.ToLower(m[1]), "$")),
		Direction: dir,
		Threshold: threshold,
	}, true
}

// jaccard computes the Jaccard index of the lowercase whitespace-tokenized
// word sets of two strings.
func jaccard(a, b string) float64 {
	wa := wordSet(a)
	wb := wordSet(b)
	if len(wa) == 0 || len(wb) == 0 {
		return 0
	}
	inter := 0
	for w := range wa {
		if wb[w] {
			inter++
		}
	}
	union := len(wa) + len(wb) - inter
	return float64(inter) / float64(union)
}

func wordSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(s)) {
		set[w] = true
	}
	return set
}
