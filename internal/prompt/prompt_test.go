package prompt

import (
	"errors"
	"strings"
	"testing"
)

func TestBuildContainsSubjectVerbatim(t *testing.T) {
	subject := "a happy cat"
	for _, style := range []Style{StyleIOS, StyleFlat, StyleVector} {
		positive, negative, err := Build(subject, style, Params{})
		if err != nil {
			t.Fatalf("Build(%s): %v", style, err)
		}
		if !strings.Contains(positive, subject) {
			t.Fatalf("positive for %s does not contain subject: %q", style, positive)
		}
		if negative == "" {
			t.Fatalf("negative for %s is empty", style)
		}
	}
}

func TestBuildDefaults(t *testing.T) {
	positive, _, err := Build("rocket", StyleIOS, Params{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !strings.Contains(positive, "modern, colorful") {
		t.Fatalf("expected default extra style in %q", positive)
	}

	positive, _, err = Build("rocket", StyleFlat, Params{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !strings.Contains(positive, "gradient background") {
		t.Fatalf("expected default flat color in %q", positive)
	}

	positive, _, err = Build("rocket", StyleFlat, Params{Color: "blue"})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !strings.Contains(positive, "blue background") {
		t.Fatalf("expected overridden color in %q", positive)
	}
}

func TestBuildCustomUsesCallerPrompt(t *testing.T) {
	custom := "neon cyberpunk badge of a fox"
	positive, negative, err := Build("fox", StyleCustom, Params{CustomStyle: custom})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if positive != custom {
		t.Fatalf("positive = %q, want caller prompt verbatim", positive)
	}
	if !strings.Contains(negative, "watermark") {
		t.Fatalf("custom negative should keep the default exclusions, got %q", negative)
	}
}

func TestBuildUnknownStyle(t *testing.T) {
	_, _, err := Build("cat", Style("sketch"), Params{})
	if !errors.Is(err, ErrUnknownStyle) {
		t.Fatalf("err = %v, want ErrUnknownStyle", err)
	}
}

func TestParseStyle(t *testing.T) {
	got, err := ParseStyle("  IOS ")
	if err != nil {
		t.Fatalf("ParseStyle: %v", err)
	}
	if got != StyleIOS {
		t.Fatalf("got %q, want %q", got, StyleIOS)
	}
	if _, err := ParseStyle("oil-painting"); !errors.Is(err, ErrUnknownStyle) {
		t.Fatalf("err = %v, want ErrUnknownStyle", err)
	}
}

func TestEnhanceSubject(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"cat", "a cat"},
		{"owl", "an owl"},
		{"a happy cat", "a happy cat"},
		{"an owl", "an owl"},
		{"the moon", "the moon"},
		{"icon of a rocket", "icon of a rocket"},
		{"Icon of a rocket", "Icon of a rocket"},
		{"  spaced  ", "a spaced"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := EnhanceSubject(tc.in); got != tc.want {
			t.Fatalf("EnhanceSubject(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
