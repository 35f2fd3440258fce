package domain

import (
	"reflect"
	"testing"

	"github.com/kyosuke-takei/slack-price-watch/pkg/optional"
)

func snap(price, rank, sellers, sold30 int64) ItemSnapshot {
	return ItemSnapshot{
		ASIN:    "B000TEST01",
		Price:   optional.Some(price),
		Rank:    optional.Some(rank),
		Sellers: optional.Some(sellers),
		Sold30:  optional.Some(sold30),
	}
}

func TestEvaluate_NewItem(t *testing.T) {
	got := Evaluate(nil, snap(1000, 500, 5, 10), DefaultThresholds())
	if !got.Significant {
		t.Error("first observation must be significant")
	}
	if !reflect.DeepEqual(got.Reasons, []string{"new"}) {
		t.Errorf("reasons = %v, want [new]", got.Reasons)
	}
}

func TestEvaluate_PriceThreshold(t *testing.T) {
	prev := snap(1000, 500, 5, 10)

	t.Run("delta above threshold triggers", func(t *testing.T) {
		got := Evaluate(&prev, snap(1250, 500, 5, 10), DefaultThresholds())
		if !got.Significant {
			t.Error("price +250 with delta 200 should be significant")
		}
		if !reflect.DeepEqual(got.Reasons, []string{"price +250"}) {
			t.Errorf("reasons = %v, want [price +250]", got.Reasons)
		}
	})

	t.Run("delta below threshold does not trigger", func(t *testing.T) {
		got := Evaluate(&prev, snap(1150, 500, 5, 10), DefaultThresholds())
		if got.Significant {
			t.Errorf("delta 150 < 200 should not be significant, reasons %v", got.Reasons)
		}
	})

	t.Run("delta exactly at threshold triggers", func(t *testing.T) {
		got := Evaluate(&prev, snap(800, 500, 5, 10), DefaultThresholds())
		if !got.Significant {
			t.Error("delta exactly 200 must be significant (>= semantics)")
		}
		if !reflect.DeepEqual(got.Reasons, []string{"price -200"}) {
			t.Errorf("reasons = %v, want [price -200]", got.Reasons)
		}
	})

	t.Run("one unit below threshold does not trigger", func(t *testing.T) {
		got := Evaluate(&prev, snap(801, 500, 5, 10), DefaultThresholds())
		if got.Significant {
			t.Error("delta 199 must not be significant")
		}
	})
}

func TestEvaluate_PricePresenceChange(t *testing.T) {
	t.Run("price appeared", func(t *testing.T) {
		prev := snap(1000, 500, 5, 10)
		prev.Price = optional.None()
		got := Evaluate(&prev, snap(1000, 500, 5, 10), DefaultThresholds())
		if !got.Significant {
			t.Error("price appearing is significant regardless of magnitude")
		}
		if !reflect.DeepEqual(got.Reasons, []string{"price listed 1000"}) {
			t.Errorf("reasons = %v", got.Reasons)
		}
	})

	t.Run("price disappeared", func(t *testing.T) {
		prev := snap(1000, 500, 5, 10)
		curr := snap(1000, 500, 5, 10)
		curr.Price = optional.None()
		got := Evaluate(&prev, curr, DefaultThresholds())
		if !got.Significant {
			t.Error("price disappearing is significant")
		}
		if !reflect.DeepEqual(got.Reasons, []string{"price gone"}) {
			t.Errorf("reasons = %v", got.Reasons)
		}
	})

	t.Run("both absent is not a change", func(t *testing.T) {
		prev := snap(0, 500, 5, 10)
		prev.Price = optional.None()
		curr := snap(0, 500, 5, 10)
		curr.Price = optional.None()
		got := Evaluate(&prev, curr, DefaultThresholds())
		if got.Significant {
			t.Errorf("no metric changed, reasons %v", got.Reasons)
		}
	})
}

func TestEvaluate_OtherMetrics(t *testing.T) {
	prev := snap(1000, 10000, 5, 10)

	tests := []struct {
		name string
		curr ItemSnapshot
		want []string
	}{
		{"rank improvement at threshold", snap(1000, 5000, 5, 10), []string{"rank -5000"}},
		{"rank one unit inside threshold", snap(1000, 5001, 5, 10), nil},
		{"rank worsening", snap(1000, 18000, 5, 10), []string{"rank +8000"}},
		{"sellers delta one", snap(1000, 10000, 6, 10), []string{"sellers +1"}},
		{"sold30 at threshold", snap(1000, 10000, 5, 15), []string{"sold30 +5"}},
		{"sold30 below threshold", snap(1000, 10000, 5, 14), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Evaluate(&prev, tt.curr, DefaultThresholds())
			if got.Significant != (tt.want != nil) {
				t.Errorf("significant = %v, want %v (reasons %v)", got.Significant, tt.want != nil, got.Reasons)
			}
			if tt.want != nil && !reflect.DeepEqual(got.Reasons, tt.want) {
				t.Errorf("reasons = %v, want %v", got.Reasons, tt.want)
			}
		})
	}
}

func TestEvaluate_ReasonsAccumulate(t *testing.T) {
	prev := snap(1000, 10000, 5, 10)
	got := Evaluate(&prev, snap(1300, 2000, 7, 20), DefaultThresholds())
	want := []string{"price +300", "rank -8000", "sellers +2", "sold30 +10"}
	if !reflect.DeepEqual(got.Reasons, want) {
		t.Errorf("reasons = %v, want %v", got.Reasons, want)
	}
}

func TestEvaluate_MissingMetricNeverTriggersMagnitude(t *testing.T) {
	prev := snap(1000, 500, 5, 10)
	curr := snap(1000, 500, 5, 10)
	curr.Rank = optional.None()
	curr.Sold30 = optional.None()
	got := Evaluate(&prev, curr, DefaultThresholds())
	if got.Significant {
		t.Errorf("rank/sold30 disappearing is not a trigger, reasons %v", got.Reasons)
	}
}

func TestEvaluate_Idempotent(t *testing.T) {
	// prev == curr must never be significant: a second run with no
	// upstream change yields zero notifications.
	prev := snap(1000, 500, 5, 10)
	got := Evaluate(&prev, prev, DefaultThresholds())
	if got.Significant {
		t.Errorf("identical snapshots must not be significant, reasons %v", got.Reasons)
	}
}
