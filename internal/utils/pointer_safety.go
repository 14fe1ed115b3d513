package utils

func Ptr[T any](v T) *T {
	return &v
}

// FirstNonEmpty returns the first argument that is not the empty string.
func FirstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
