package product

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDedup(t *testing.T) {
	tests := []struct {
		name string
		in   []int64
		want []int64
	}{
		{name: "empty", in: nil, want: []int64{}},
		{name: "no duplicates", in: []int64{3, 1, 2}, want: []int64{3, 1, 2}},
		{name: "keeps first occurrence", in: []int64{5, 1, 5, 2, 1}, want: []int64{5, 1, 2}},
		{name: "all same", in: []int64{7, 7, 7}, want: []int64{7}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Dedup(tt.in))
		})
	}
}

func TestDedup_DoesNotModifyInput(t *testing.T) {
	in := []int64{1, 1, 2}
	_ = Dedup(in)
	assert.Equal(t, []int64{1, 1, 2}, in)
}

func TestSameSet(t *testing.T) {
	tests := []struct {
		name string
		a, b []int64
		want bool
	}{
		{name: "identical", a: []int64{1, 2}, b: []int64{1, 2}, want: true},
		{name: "reordered", a: []int64{1, 2, 3}, b: []int64{3, 1, 2}, want: true},
		{name: "duplicates ignored", a: []int64{1, 2}, b: []int64{2, 1, 2}, want: true},
		{name: "extra id", a: []int64{1, 2}, b: []int64{1, 2, 3}, want: false},
		{name: "missing id", a: []int64{1, 2, 3}, b: []int64{1, 2}, want: false},
		{name: "disjoint", a: []int64{1}, b: []int64{2}, want: false},
		{name: "both empty", a: nil, b: []int64{}, want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SameSet(tt.a, tt.b))
		})
	}
}
