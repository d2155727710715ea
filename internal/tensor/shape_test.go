package tensor

import (
	"testing"
)

func assertEqualShape(t *testing.T, expected, actual Shape, msg string) {
	t.Helper()
	if !expected.Equal(actual) {
		t.Errorf("%s: expected shape %v, got %v", msg, expected, actual)
	}
}

func TestShapeNumElements(t *testing.T) {
	tests := []struct {
		shape Shape
		want  int
	}{
		{Shape{}, 1},
		{Shape{5}, 5},
		{Shape{2, 3}, 6},
		{Shape{2, 3, 4}, 24},
	}

	for _, tt := range tests {
		if got := tt.shape.NumElements(); got != tt.want {
			t.Errorf("%v.NumElements() = %d, want %d", tt.shape, got, tt.want)
		}
	}
}

func TestShapeValidate(t *testing.T) {
	if err := (Shape{2, 3}).Validate(); err != nil {
		t.Errorf("valid shape rejected: %v", err)
	}
	if err := (Shape{2, 0}).Validate(); err == nil {
		t.Error("expected error for zero dimension")
	}
	if err := (Shape{-1}).Validate(); err == nil {
		t.Error("expected error for negative dimension")
	}
}

func TestShapeComputeStrides(t *testing.T) {
	strides := Shape{2, 3, 4}.ComputeStrides()
	want := []int{12, 4, 1}
	for i := range want {
		if strides[i] != want[i] {
			t.Fatalf("strides = %v, want %v", strides, want)
		}
	}
}

func TestShapeNormalizeDim(t *testing.T) {
	s := Shape{2, 3, 4}
	d, err := s.NormalizeDim(-1)
	if err != nil || d != 2 {
		t.Errorf("NormalizeDim(-1) = %d, %v", d, err)
	}
	if _, err := s.NormalizeDim(3); err == nil {
		t.Error("expected out-of-range error")
	}
}

func TestBroadcastShapes(t *testing.T) {
	tests := []struct {
		name      string
		a, b      Shape
		want      Shape
		broadcast bool
		wantErr   bool
	}{
		{"same", Shape{3, 5}, Shape{3, 5}, Shape{3, 5}, false, false},
		{"column", Shape{3, 1}, Shape{3, 5}, Shape{3, 5}, true, false},
		{"bias", Shape{5}, Shape{3, 5}, Shape{3, 5}, true, false},
		{"scalar", Shape{}, Shape{2, 2}, Shape{2, 2}, true, false},
		{"rank3", Shape{2, 1, 4}, Shape{3, 1}, Shape{2, 3, 4}, true, false},
		{"incompatible", Shape{3, 4}, Shape{3, 5}, nil, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, broadcast, err := BroadcastShapes(tt.a, tt.b)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %v vs %v", tt.a, tt.b)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			assertEqualShape(t, tt.want, got, "broadcast shape")
			if broadcast != tt.broadcast {
				t.Errorf("needsBroadcast = %v, want %v", broadcast, tt.broadcast)
			}
		})
	}
}

func TestRawClone(t *testing.T) {
	raw, err := NewRawFrom([]float64{1, 2, 3, 4}, Shape{2, 2})
	if err != nil {
		t.Fatal(err)
	}
	clone := raw.Clone()
	clone.Data()[0] = 100
	if raw.Data()[0] != 1 {
		t.Error("Clone shares storage with original")
	}
	assertEqualShape(t, raw.Shape(), clone.Shape(), "clone shape")

	if _, err := NewRawFrom([]float64{1, 2, 3}, Shape{2, 2}); err == nil {
		t.Error("expected element count error")
	}
}
