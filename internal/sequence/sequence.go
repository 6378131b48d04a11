// Package sequence computes the next roll number from ledger state.
//
// Two policies exist. Count-based assigns base + count + 1, where count is the
// number of numeric roll entries already recorded. Max-based assigns one past
// the largest recorded roll (never below base + 1). A deployment must stick to
// one policy: switching policies against an existing ledger can reissue or
// skip numbers.
package sequence

import (
	"fmt"
	"strings"

	"github.com/alfredjeanlab/rollcall/internal/model"
)

// Policy names a roll-number allocation policy.
type Policy string

const (
	PolicyCount Policy = "count"
	PolicyMax   Policy = "max"
)

// ParsePolicy parses a policy name, case-insensitively.
func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(strings.ToLower(strings.TrimSpace(s))); p {
	case PolicyCount, PolicyMax:
		return p, nil
	default:
		return "", fmt.Errorf("unknown roll policy %q (must be count or max)", s)
	}
}

// Allocator computes the next roll number from ledger statistics.
type Allocator interface {
	Next(stats model.RollStats) model.RollNumber
	Policy() Policy
}

// New returns the allocator for policy, offset by base.
func New(policy Policy, base int) (Allocator, error) {
	if base < 0 {
		return nil, fmt.Errorf("roll base must be non-negative, got %d", base)
	}
	switch policy {
	case PolicyCount:
		return countAllocator{base: model.RollNumber(base)}, nil
	case PolicyMax:
		return maxAllocator{base: model.RollNumber(base)}, nil
	default:
		return nil, fmt.Errorf("unknown roll policy %q", policy)
	}
}

type countAllocator struct {
	base model.RollNumber
}

func (a countAllocator) Next(st model.RollStats) model.RollNumber {
	return a.base + model.RollNumber(st.Count) + 1
}

func (countAllocator) Policy() Policy { return PolicyCount }

type maxAllocator struct {
	base model.RollNumber
}

func (a maxAllocator) Next(st model.RollStats) model.RollNumber {
	return max(st.Max, a.base) + 1
}

func (maxAllocator) Policy() Policy { return PolicyMax }
