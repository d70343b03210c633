package types

// TypeDesc describes the shape of a Value well enough to parse or
// serialize it without runtime type tags for collections, tuples, and
// UDTs — the schema the caller already has from Statistics/table
// metadata. Only Kind is meaningful for scalar kinds; the rest are set
// per the recursive kinds that need them.
type TypeDesc struct {
	Kind Kind

	// Elem describes List/Set elements and Frozen's single payload.
	Elem *TypeDesc
	// MapKey/MapValue describe Map key/value types.
	MapKey   *TypeDesc
	MapValue *TypeDesc
	// Components describes Tuple arity and component types, in order.
	Components []TypeDesc
	// Fields describes UDT fields in declaration order; missing
	// trailing fields on the wire are interpreted as null per §4.2.
	Fields []FieldDesc
}

// FieldDesc names one UDT field and its type.
type FieldDesc struct {
	Name string
	Type TypeDesc
}

func Scalar(k Kind) TypeDesc { return TypeDesc{Kind: k} }

func ListOf(elem TypeDesc) TypeDesc  { return TypeDesc{Kind: KindList, Elem: &elem} }
func SetOf(elem TypeDesc) TypeDesc   { return TypeDesc{Kind: KindSet, Elem: &elem} }
func MapOf(k, v TypeDesc) TypeDesc   { return TypeDesc{Kind: KindMap, MapKey: &k, MapValue: &v} }
func TupleOf(comps ...TypeDesc) TypeDesc {
	return TypeDesc{Kind: KindTuple, Components: comps}
}
func UDTOf(fields ...FieldDesc) TypeDesc { return TypeDesc{Kind: KindUDT, Fields: fields} }
func FrozenOf(inner TypeDesc) TypeDesc   { return TypeDesc{Kind: KindFrozen, Elem: &inner} }
