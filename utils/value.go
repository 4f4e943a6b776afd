package utils

// AssertType attempts to assert that the given interface argument is
// the given type parameter.
func AssertType[T any](from interface{}) (T, error) {
	var zero T
	asserted, ok := from.(T)
	if !ok {
		return zero, NewUnexpectedTypeError[T](from)
	}
	return asserted, nil
}

// AssertTypes is AssertType for every element of from. It fails on the first mismatch.
func AssertTypes[T any, S ~[]E, E any](from S) ([]T, error) {
	out := make([]T, len(from))
	for i, v := range from {
		asserted, err := AssertType[T](v)
		if err != nil {
			return nil, err
		}
		out[i] = asserted
	}
	return out, nil
}
