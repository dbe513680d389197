// Package prompt formats prompt templates and loads them, together with story
// concepts, from an embedded default set or an on-disk override directory.
package prompt

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrMissingKey is returned when a template placeholder has no value.
	ErrMissingKey = errors.New("missing placeholder value")
	// ErrMalformed is returned for unbalanced braces or unsupported fields.
	ErrMalformed = errors.New("malformed template")
)

// FormatError reports which placeholder could not be filled and where.
type FormatError struct {
	Key string
	Pos int
	Err error
}

func (e *FormatError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("format template at offset %d: %v: {%s}", e.Pos, e.Err, e.Key)
	}
	return fmt.Sprintf("format template at offset %d: %v", e.Pos, e.Err)
}

func (e *FormatError) Unwrap() error {
	return e.Err
}

// Format substitutes every {name} placeholder in tmpl with vars[name].
// Doubled braces produce a literal brace. Keys in vars that the template does
// not reference are ignored; a referenced key absent from vars is an error.
func Format(tmpl string, vars map[string]string) (string, error) {
	var out strings.Builder
	out.Grow(len(tmpl))

	err := scan(tmpl, func(literal string) {
		out.WriteString(literal)
	}, func(key string, pos int) error {
		val, ok := vars[key]
		if !ok {
			return &FormatError{Key: key, Pos: pos, Err: ErrMissingKey}
		}
		out.WriteString(val)
		return nil
	})
	if err != nil {
		return "", err
	}
	return out.String(), nil
}

// Placeholders returns the distinct placeholder names of tmpl in order of
// first appearance.
func Placeholders(tmpl string) ([]string, error) {
	var keys []string
	seen := make(map[string]bool)
	err := scan(tmpl, func(string) {}, func(key string, _ int) error {
		if !seen[key] {
			seen[key] = true
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return keys, nil
}

// scan walks tmpl, handing literal runs to lit and each placeholder to field.
func scan(tmpl string, lit func(string), field func(key string, pos int) error) error {
	start := 0
	for i := 0; i < len(tmpl); i++ {
		switch tmpl[i] {
		case '{':
			if i+1 < len(tmpl) && tmpl[i+1] == '{' {
				lit(tmpl[start : i+1])
				i++
				start = i + 1
				continue
			}
			end := strings.IndexByte(tmpl[i+1:], '}')
			if end < 0 {
				return &FormatError{Pos: i, Err: fmt.Errorf("%w: unclosed '{'", ErrMalformed)}
			}
			key := tmpl[i+1 : i+1+end]
			if err := validKey(key); err != nil {
				return &FormatError{Key: key, Pos: i, Err: err}
			}
			lit(tmpl[start:i])
			if err := field(key, i); err != nil {
				return err
			}
			i += end + 1
			start = i + 1
		case '}':
			if i+1 < len(tmpl) && tmpl[i+1] == '}' {
				lit(tmpl[start : i+1])
				i++
				start = i + 1
				continue
			}
			return &FormatError{Pos: i, Err: fmt.Errorf("%w: single '}'", ErrMalformed)}
		}
	}
	lit(tmpl[start:])
	return nil
}

func validKey(key string) error {
	if key == "" {
		return fmt.Errorf("%w: positional field", ErrMalformed)
	}
	for i, r := range key {
		switch {
		case r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'):
		case r >= '0' && r <= '9':
			if i == 0 {
				return fmt.Errorf("%w: positional field", ErrMalformed)
			}
		default:
			return fmt.Errorf("%w: unsupported field", ErrMalformed)
		}
	}
	return nil
}
