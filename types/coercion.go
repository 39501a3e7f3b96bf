package types

// CanCoerce reports whether a value of type from may be used implicitly
// where a value of type to is expected, per the coercion lattice in
// spec.md §4.3:
//
//   - Bool coerces to any integer scalar (true=1, false=0).
//   - Safe integer widening I8 ⊑ I16 ⊑ I32 ⊑ I64.
//   - Safe float widening F32 ⊑ F64.
//   - No cross-family (int↔float) coercion without an explicit Cast.
//   - No narrowing in either family.
//   - &mut T coerces to &T; never the reverse.
//   - Everything else (structs, enums, functions) is nominal: identity
//     equality is the only coercion.
func (r *Registry) CanCoerce(from, to Id) bool {
	if from == to {
		return true
	}
	if from == Bool && r.IsInteger(to) {
		return true
	}
	if r.IsInteger(from) && r.IsInteger(to) {
		return r.BitWidth(from) <= r.BitWidth(to)
	}
	if from == F32 && to == F64 {
		return true
	}
	fromT, fromOk := r.Lookup(from)
	toT, toOk := r.Lookup(to)
	if !fromOk || !toOk {
		return false
	}
	if fromT.Kind == KindPointer && toT.Kind == KindPointer {
		return fromT.Pointee == toT.Pointee && (fromT.Mutable == toT.Mutable || (fromT.Mutable && !toT.Mutable))
	}
	return false
}
