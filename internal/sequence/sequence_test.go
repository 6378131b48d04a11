package sequence

import (
	"testing"

	"github.com/alfredjeanlab/rollcall/internal/model"
)

func TestParsePolicy(t *testing.T) {
	for _, tc := range []struct {
		in      string
		want    Policy
		wantErr bool
	}{
		{"count", PolicyCount, false},
		{"MAX", PolicyMax, false},
		{" max ", PolicyMax, false},
		{"", "", true},
		{"last", "", true},
	} {
		got, err := ParsePolicy(tc.in)
		if tc.wantErr != (err != nil) {
			t.Errorf("ParsePolicy(%q) err = %v, wantErr %v", tc.in, err, tc.wantErr)
			continue
		}
		if got != tc.want {
			t.Errorf("ParsePolicy(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestNew_Errors(t *testing.T) {
	if _, err := New(PolicyCount, -1); err == nil {
		t.Error("expected error for negative base")
	}
	if _, err := New("bogus", 0); err == nil {
		t.Error("expected error for unknown policy")
	}
}

func TestAllocators(t *testing.T) {
	for _, tc := range []struct {
		name   string
		policy Policy
		base   int
		stats  model.RollStats
		want   model.RollNumber
	}{
		{"CountEmpty", PolicyCount, 0, model.RollStats{}, 1},
		{"CountThree", PolicyCount, 0, model.RollStats{Count: 3, Max: 3}, 4},
		{"CountIgnoresMax", PolicyCount, 0, model.RollStats{Count: 2, Max: 40}, 3},
		{"CountBase", PolicyCount, 1000, model.RollStats{Count: 5, Max: 1005}, 1006},
		{"CountBaseEmpty", PolicyCount, 1000, model.RollStats{}, 1001},
		{"MaxEmpty", PolicyMax, 0, model.RollStats{}, 1},
		{"MaxGap", PolicyMax, 0, model.RollStats{Count: 2, Max: 40}, 41},
		{"MaxBaseFloor", PolicyMax, 1000, model.RollStats{Count: 1, Max: 7}, 1001},
		{"MaxAboveBase", PolicyMax, 1000, model.RollStats{Count: 3, Max: 1003}, 1004},
	} {
		t.Run(tc.name, func(t *testing.T) {
			a, err := New(tc.policy, tc.base)
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			if a.Policy() != tc.policy {
				t.Errorf("Policy() = %q, want %q", a.Policy(), tc.policy)
			}
			if got := a.Next(tc.stats); got != tc.want {
				t.Errorf("Next(%+v) = %d, want %d", tc.stats, got, tc.want)
			}
		})
	}
}

func TestAllocator_SequentialIsContiguous(t *testing.T) {
	for _, p := range []Policy{PolicyCount, PolicyMax} {
		a, _ := New(p, 0)
		var cells []string
		for i := 1; i <= 20; i++ {
			next := a.Next(model.RollStatsFromColumn(cells))
			if int(next) != i {
				t.Fatalf("%s: step %d allocated %d", p, i, next)
			}
			cells = append(cells, next.String())
		}
	}
}
