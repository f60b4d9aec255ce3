package at

import (
	"errors"
	"fmt"
)

// ErrBadPattern is returned for scan patterns using verbs other than %d, %x
// and %s.
var ErrBadPattern = errors.New("unsupported scan pattern")

// Fields holds the values extracted from a response line, in pattern order.
// Integer verbs produce int64 values, %s produces strings.
type Fields []any

// Int returns the i-th value as an int, or 0 when it is missing or not an
// integer.
func (f Fields) Int(i int) int {
	return int(f.Int64(i))
}

// Int64 returns the i-th value as an int64, or 0 when it is missing or not an
// integer.
func (f Fields) Int64(i int) int64 {
	if i < 0 || i >= len(f) {
		return 0
	}
	v, _ := f[i].(int64)
	return v
}

// String returns the i-th value as a string, or "" when it is missing or not
// a string.
func (f Fields) String(i int) string {
	if i < 0 || i >= len(f) {
		return ""
	}
	v, _ := f[i].(string)
	return v
}

// Scan extracts the values described by pattern from line. The pattern uses
// fmt scanning syntax; literal text must match and every placeholder must be
// filled for the scan to succeed. Trailing input after the last placeholder
// is ignored.
func Scan(line, pattern string) (Fields, bool, error) {
	verbs, err := placeholders(pattern)
	if err != nil {
		return nil, false, err
	}

	targets := make([]any, len(verbs))
	for i, verb := range verbs {
		switch verb {
		case 'd', 'x':
			targets[i] = new(int64)
		case 's':
			targets[i] = new(string)
		}
	}

	if len(targets) == 0 {
		return Fields{}, line == pattern, nil
	}

	n, _ := fmt.Sscanf(line, pattern, targets...)
	if n != len(targets) {
		return nil, false, nil
	}

	fields := make(Fields, len(targets))
	for i, t := range targets {
		switch v := t.(type) {
		case *int64:
			fields[i] = *v
		case *string:
			fields[i] = *v
		}
	}
	return fields, true, nil
}

// placeholders returns the verb of every placeholder in the pattern.
func placeholders(pattern string) ([]byte, error) {
	var verbs []byte
	for i := 0; i < len(pattern); i++ {
		if pattern[i] != '%' {
			continue
		}
		i++
		if i < len(pattern) && pattern[i] == '%' {
			continue
		}
		for i < len(pattern) && pattern[i] >= '0' && pattern[i] <= '9' {
			i++
		}
		if i >= len(pattern) {
			return nil, fmt.Errorf("%w: %q ends inside a placeholder", ErrBadPattern, pattern)
		}
		switch pattern[i] {
		case 'd', 'x', 's':
			verbs = append(verbs, pattern[i])
		default:
			return nil, fmt.Errorf("%w: %%%c in %q", ErrBadPattern, pattern[i], pattern)
		}
	}
	return verbs, nil
}
