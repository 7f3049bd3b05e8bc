package value

import "testing"

func TestEqualIntegerFloatNeverEqual(t *testing.T) {
	if Int(3).Equal(Float(3.0)) {
		t.Fatalf("Integer(3) must not equal Float(3.0)")
	}
	if Float(3.0).Equal(Int(3)) {
		t.Fatalf("Float(3.0) must not equal Integer(3)")
	}
}

func TestEqualNull(t *testing.T) {
	if !Null.Equal(Null) {
		t.Fatalf("Null must equal Null")
	}
	if Null.Equal(Int(0)) || Int(0).Equal(Null) {
		t.Fatalf("Null must not equal any non-null value")
	}
}

func TestCompareIntegerFloatOrdering(t *testing.T) {
	tests := []struct {
		name string
		a, b Value
		want int
	}{
		{"int lt float", Int(1), Float(2.5), -1},
		{"float gt int", Float(2.5), Int(1), 1},
		{"int eq float", Int(2), Float(2.0), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmp, ok := tt.a.Compare(tt.b)
			if !ok {
				t.Fatalf("expected comparable pair")
			}
			if cmp != tt.want {
				t.Fatalf("got %d, want %d", cmp, tt.want)
			}
		})
	}
}

func TestCompareIncomparable(t *testing.T) {
	if _, ok := String("a").Compare(Bool(true)); ok {
		t.Fatalf("string/bool should not be comparable")
	}
}

func TestObjectHashOrderIndependent(t *testing.T) {
	a := Object(map[string]Value{"x": Int(1), "y": String("z")})
	b := Object(map[string]Value{"y": String("z"), "x": Int(1)})
	if a.Hash() != b.Hash() {
		t.Fatalf("object hash must be independent of construction order")
	}
}

func TestFloatHashRawBits(t *testing.T) {
	nan1 := Float(negNaN())
	nan2 := Float(negNaN())
	if nan1.Hash() != nan2.Hash() {
		t.Fatalf("identical NaN bit patterns must hash identically")
	}
}

func negNaN() float64 {
	var zero float64
	return zero / zero
}

func TestContains(t *testing.T) {
	if !String("hello world").Contains(String("wor")) {
		t.Fatalf("string Contains failed")
	}
	arr := Array([]Value{Int(1), Int(2), Int(3)})
	if !arr.Contains(Int(2)) || arr.Contains(Int(5)) {
		t.Fatalf("array Contains failed")
	}
}

func TestArrayValueCopyIsolation(t *testing.T) {
	src := []Value{Int(1)}
	v := Array(src)
	src[0] = Int(99)
	got, _ := v.Index(0)
	if i, _ := got.AsInt(); i != 1 {
		t.Fatalf("Array must copy its backing slice, got %d", i)
	}
}
