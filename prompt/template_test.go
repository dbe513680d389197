package prompt

import (
	"errors"
	"fmt"
	"reflect"
	"testing"
)

func TestFormatSubstitutesAllPlaceholders(t *testing.T) {
	got, err := Format("{a}{b}", map[string]string{"a": "X", "b": "Y"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "XY" {
		t.Errorf("expected %q, got %q", "XY", got)
	}
}

func TestFormatMissingKey(t *testing.T) {
	_, err := Format("{a}{b}", map[string]string{"a": "X"})
	if !errors.Is(err, ErrMissingKey) {
		t.Fatalf("expected ErrMissingKey, got %v", err)
	}

	var fe *FormatError
	if !errors.As(err, &fe) {
		t.Fatalf("expected *FormatError, got %T", err)
	}
	if fe.Key != "b" {
		t.Errorf("expected key b, got %q", fe.Key)
	}
	if fe.Pos != 3 {
		t.Errorf("expected offset 3, got %d", fe.Pos)
	}
}

func TestFormatIgnoresExtraKeys(t *testing.T) {
	got, err := Format("Outline:\n{outline}", map[string]string{
		"outline":  "I. Intro",
		"feedback": "unused",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "Outline:\nI. Intro" {
		t.Errorf("got %q", got)
	}
}

func TestFormatEscapedBraces(t *testing.T) {
	got, err := Format(`{{"title": "{title}"}}`, map[string]string{"title": "Fly"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := `{"title": "Fly"}`; got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestFormatValuesAreNotReinterpreted(t *testing.T) {
	got, err := Format("{draft}", map[string]string{"draft": "a {feedback} b }"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "a {feedback} b }" {
		t.Errorf("got %q", got)
	}
}

func TestFormatMalformed(t *testing.T) {
	tests := []struct {
		name string
		tmpl string
	}{
		{"unclosed", "Outline: {outline"},
		{"single close", "Outline: outline}"},
		{"positional", "Outline: {}"},
		{"numeric", "Outline: {0}"},
		{"format directive", "Outline: {outline:>10}"},
		{"conversion", "Outline: {outline!r}"},
		{"attribute", "Outline: {outline.title}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Format(tt.tmpl, map[string]string{"outline": "x"})
			if !errors.Is(err, ErrMalformed) {
				t.Errorf("expected ErrMalformed, got %v", err)
			}
		})
	}
}

func TestPlaceholders(t *testing.T) {
	got, err := Placeholders("{outline} then {draft}, {{literal}} and {outline} again with {feedback}")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"outline", "draft", "feedback"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func ExampleFormat() {
	out, _ := Format("Outline a story about \"{concept}\".", map[string]string{
		"concept": "A dog learns to fly.",
	})
	fmt.Println(out)
	// Output: Outline a story about "A dog learns to fly.".
}
