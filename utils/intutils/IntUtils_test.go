package intutils

import "testing"

func TestMin(t *testing.T) {
	tests := []struct {
		ints     []int
		expected int
	}{
		{[]int{3}, 3},
		{[]int{3, 1, 2}, 1},
		{[]int{-5, 0, 5}, -5},
		{[]int{2, 2}, 2},
	}

	for _, test := range tests {
		if got := Min(test.ints...); got != test.expected {
			t.Errorf("Min(%v) = %v, expected %v", test.ints, got,
				test.expected)
		}
	}
}
