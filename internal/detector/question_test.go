package detector

import (
	"math"
	"testing"
)

func TestParseQuestion(t *testing.T) {
	cases := []struct {
		text string
		want Condition
		ok   bool
	}{
		{"Will BTC hit 150k by December?", Condition{"BTC", DirectionAbove, 150_000}, true},
		{"Will ETH reach $5,000 in 2026?", Condition{"ETH", DirectionAbove, 5_000}, true},
		{"Will SOL be above 300 by March?", Condition{"SOL", DirectionAbove, 300}, true},
		{"Will BTC drop below 60k this year?", Condition{"BTC", DirectionBelow, 60_000}, true},
		{"Will doge stay under $0.10?", Condition{"DOGE", DirectionBelow, 0.10}, true},
		{"Will BTC exceed 1m?", Condition{"BTC", DirectionAbove, 1_000_000}, true},
		{"Who will win the election?", Condition{}, false},
		{"Will it rain tomorrow?", Condition{}, false},
	}
	for _, tc := range cases {
		t.Run(tc.text, func(t *testing.T) {
			got, ok := ParseQuestion(tc.text)
			if ok != tc.ok {
				t.Fatalf("ok = %v, want %v", ok, tc.ok)
			}
			if !ok {
				return
			}
			if got.Asset != tc.want.Asset || got.Direction != tc.want.Direction {
				t.Fatalf("got %+v, want %+v", got, tc.want)
			}
			if math.Abs(got.Threshold-tc.want.Threshold) > 1e-9 {
				t.Fatalf("threshold = %f, want %f", got.Threshold, tc.want.Threshold)
			}
		})
	}
}

func TestJaccard(t *testing.T) {
	if got := jaccard("will btc hit 100k", "will btc hit 100k"); got != 1.0 {
		t.Fatalf("identical strings: got %f", got)
	}
	if got := jaccard("alpha beta", "gamma delta"); got != 0 {
		t.Fatalf("disjoint strings: got %f", got)
	}
	// 3 shared of 4 union.
	if got := jaccard("will btc rise", "will btc rise today"); math.Abs(got-0.75) > 1e-9 {
		t.Fatalf("got %f, want 0.75", got)
	}
}
