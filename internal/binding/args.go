package binding

// Args holds bound parameter values keyed by spec name. The typed
// accessors return zero values for missing names or type mismatches so
// handlers read bound values without re-asserting.
type Args map[string]any

// Has reports whether a parameter was bound.
func (a Args) Has(name string) bool {
	_, ok := a[name]
	return ok
}

// String returns the string value for a name.
func (a Args) String(name string) string {
	v, _ := a[name].(string)
	return v
}

// Int returns the integer value for a name.
func (a Args) Int(name string) int64 {
	v, _ := a[name].(int64)
	return v
}

// Float returns the float value for a name.
func (a Args) Float(name string) float64 {
	v, _ := a[name].(float64)
	return v
}

// Bool returns the boolean value for a name.
func (a Args) Bool(name string) bool {
	v, _ := a[name].(bool)
	return v
}

// Strings returns the string elements of a bound list. Non-string
// elements are skipped.
func (a Args) Strings(name string) []string {
	elems, ok := a[name].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(elems))
	for _, e := range elems {
		if s, ok := e.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// Ints returns the integer elements of a bound list.
func (a Args) Ints(name string) []int64 {
	elems, ok := a[name].([]any)
	if !ok {
		return nil
	}
	out := make([]int64, 0, len(elems))
	for _, e := range elems {
		if n, ok := e.(int64); ok {
			out = append(out, n)
		}
	}
	return out
}

// File returns the bound file value for a name.
func (a Args) File(name string) *FileValue {
	v, _ := a[name].(*FileValue)
	return v
}

// Model returns the bound model for a name.
func (a Args) Model(name string) Validatable {
	v, _ := a[name].(Validatable)
	return v
}
