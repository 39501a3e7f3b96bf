package types

import "testing"

func TestCanCoerce(t *testing.T) {
	r := NewRegistry()
	ptrMut := r.Define(LmType{Kind: KindPointer, Pointee: I32, Mutable: true})
	ptrConst := r.Define(LmType{Kind: KindPointer, Pointee: I32, Mutable: false})
	structA := r.Define(LmType{Kind: KindStruct, Fields: []Field{{Name: "x", Type: I32}}})
	structB := r.Define(LmType{Kind: KindStruct, Fields: []Field{{Name: "x", Type: I32}}})

	tests := []struct {
		name string
		from Id
		to   Id
		want bool
	}{
		{"identity", I32, I32, true},
		{"bool to i32", Bool, I32, true},
		{"bool to i8", Bool, I8, true},
		{"i8 widens to i32", I8, I32, true},
		{"i32 does not narrow to i8", I32, I8, false},
		{"i64 does not narrow to i32", I64, I32, false},
		{"f32 widens to f64", F32, F64, true},
		{"f64 does not narrow to f32", F64, F32, false},
		{"no int to float", I32, F32, false},
		{"no float to int", F32, I32, false},
		{"mut pointer to const pointer", ptrMut, ptrConst, true},
		{"const pointer not to mut", ptrConst, ptrMut, false},
		{"nominal structs with identical shape are incompatible", structA, structB, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := r.CanCoerce(tt.from, tt.to); got != tt.want {
				t.Errorf("CanCoerce(%d, %d) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestRegistryDefine(t *testing.T) {
	r := NewRegistry()
	before := r.Count()
	id := r.Define(LmType{Kind: KindArray, Element: I32, Length: 4})
	if int(id) != before {
		t.Fatalf("expected new id %d, got %d", before, id)
	}
	lt, ok := r.Lookup(id)
	if !ok || lt.Kind != KindArray || lt.Element != I32 || lt.Length != 4 {
		t.Fatalf("unexpected lookup result: %+v ok=%v", lt, ok)
	}
}

func TestBitWidth(t *testing.T) {
	r := NewRegistry()
	if r.BitWidth(I32) != 32 {
		t.Fatalf("expected 32, got %d", r.BitWidth(I32))
	}
	if r.BitWidth(Bool) != 0 {
		t.Fatalf("expected 0 for non-integer, got %d", r.BitWidth(Bool))
	}
}
