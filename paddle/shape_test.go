package paddle

import (
	"math"
	"strings"
	"testing"
)

func TestNewShape(t *testing.T) {
	tests := []struct {
		name string
		dims []int64
		want Shape
	}{
		{"scalar", nil, Shape{}},
		{"vector", []int64{8}, Shape{8}},
		{"matrix", []int64{2, 3}, Shape{2, 3}},
		{"image batch", []int64{1, 3, 224, 224}, Shape{1, 3, 224, 224}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewShape(tt.dims...)
			if len(got) != len(tt.want) {
				t.Fatalf("expected rank %d, got %d", len(tt.want), len(got))
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("dim %d: expected %d, got %d", i, tt.want[i], got[i])
				}
			}
		})
	}
}

func TestShapeElementCount(t *testing.T) {
	tests := []struct {
		name    string
		shape   Shape
		want    int
		wantErr bool
	}{
		{"scalar", Shape{}, 1, false},
		{"vector", Shape{5}, 5, false},
		{"matrix", Shape{2, 3}, 6, false},
		{"image batch", Shape{1, 3, 224, 224}, 150528, false},
		{"zero dim", Shape{2, 0, 3}, 0, false},
		{"zero dim before overflow dims", Shape{0, math.MaxInt64, math.MaxInt64}, 0, false},
		{"negative dim", Shape{2, -1}, 0, true},
		{"max representable dim", Shape{int64(math.MaxInt)}, math.MaxInt, false},
		{"product overflow", Shape{math.MaxInt32, math.MaxInt32, math.MaxInt32}, 0, true},
		{"overflow via second dim", Shape{math.MaxInt64, 2}, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ShapeElementCount(tt.shape)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for shape %v", tt.shape)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %d elements, got %d", tt.want, got)
			}
		})
	}
}

func TestShapeToInt32(t *testing.T) {
	dims, err := shapeToInt32(Shape{1, 3, 224, 224})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []int32{1, 3, 224, 224}
	for i := range want {
		if dims[i] != want[i] {
			t.Errorf("dim %d: expected %d, got %d", i, want[i], dims[i])
		}
	}

	if _, err := shapeToInt32(Shape{int64(math.MaxInt32) + 1}); err == nil {
		t.Error("expected error for dimension exceeding int32 range")
	}
	if _, err := shapeToInt32(Shape{-1}); err == nil {
		t.Error("expected error for negative dimension")
	}
}

func TestParseShape(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Shape
		wantErr string
	}{
		{"single dim", "8", Shape{8}, ""},
		{"multiple dims", "1,3,224,224", Shape{1, 3, 224, 224}, ""},
		{"with spaces", " 2 , 3 ", Shape{2, 3}, ""},
		{"zero dim", "0,4", Shape{0, 4}, ""},
		{"empty input", "", nil, "empty dimension"},
		{"empty segment", "1,,3", nil, "empty dimension"},
		{"trailing comma", "1,2,", nil, "empty dimension"},
		{"non-numeric", "1,a,3", nil, "failed to parse dimension"},
		{"negative", "1,-2", nil, "negative dimension"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseShape(tt.input)
			if tt.wantErr != "" {
				if err == nil {
					t.Fatalf("expected error containing %q", tt.wantErr)
				}
				if !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("expected error containing %q, got: %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("expected rank %d, got %d", len(tt.want), len(got))
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("dim %d: expected %d, got %d", i, tt.want[i], got[i])
				}
			}
		})
	}
}

func TestCloneShapeScalarStaysNonNil(t *testing.T) {
	cloned := cloneShape(nil)
	if cloned == nil {
		t.Fatal("expected non-nil shape for scalar clone")
	}
	if len(cloned) != 0 {
		t.Fatalf("expected rank 0, got %d", len(cloned))
	}
}

func TestCloneShapeIsIndependent(t *testing.T) {
	original := Shape{2, 3}
	cloned := cloneShape(original)
	cloned[0] = 99
	if original[0] != 2 {
		t.Errorf("expected original shape to be unchanged, got %v", original)
	}
}
