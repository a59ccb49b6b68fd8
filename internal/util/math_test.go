package util

import (
	"reflect"
	"testing"
)

func TestMedianInt64(t *testing.T) {
	tests := []struct {
		name   string
		values []int64
		want   int64
		ok     bool
	}{
		{"empty", nil, 0, false},
		{"single", []int64{7}, 7, true},
		{"odd", []int64{10, 30, 20}, 20, true},
		{"even truncates", []int64{10, 20, 30, 40}, 25, true},
		{"even odd-sum truncates", []int64{10, 15}, 12, true},
		{"unsorted input", []int64{90, 50, 70, 60, 80}, 70, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := MedianInt64(tt.values)
			if ok != tt.ok {
				t.Fatalf("MedianInt64(%v) ok = %v, want %v", tt.values, ok, tt.ok)
			}
			if got != tt.want {
				t.Errorf("MedianInt64(%v) = %d, want %d", tt.values, got, tt.want)
			}
		})
	}
}

func TestMedianInt64DoesNotMutateInput(t *testing.T) {
	values := []int64{3, 1, 2}
	MedianInt64(values)
	if !reflect.DeepEqual(values, []int64{3, 1, 2}) {
		t.Errorf("input slice was reordered: %v", values)
	}
}

func TestUniqueStrings(t *testing.T) {
	got := UniqueStrings([]string{"a", "b", "a", "c", "b"})
	want := []string{"a", "b", "c"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("UniqueStrings = %v, want %v", got, want)
	}
}
