package selection

// TempNames holds the schema-qualified names of the temporary objects the
// selection procedure creates for one (schema, table, token) triple.
type TempNames struct {
	Point string
	Poly  string
	Flat  string
}

// NewTempNames derives the temporary object names. It is a pure function:
// equal inputs give equal names, and a different token changes all three.
func NewTempNames(schema, table, token string) TempNames {
	return TempNames{
		Point: Qualify(schema, table+"_point_"+token),
		Poly:  Qualify(schema, table+"_poly_"+token),
		Flat:  Qualify(schema, table+"_"+token),
	}
}

// All returns the names in point, poly, flat order.
func (n TempNames) All() []string {
	return []string{n.Point, n.Poly, n.Flat}
}
