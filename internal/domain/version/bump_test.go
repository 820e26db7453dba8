package version

import (
	"errors"
	"testing"
)

func ptr(s string) *SemanticVersion {
	v := MustParse(s)
	return &v
}

func TestParseBumpType(t *testing.T) {
	tests := []struct {
		input   string
		wantBT  BumpType
		wantErr bool
	}{
		{"major", BumpMajor, false},
		{"minor", BumpMinor, false},
		{"patch", BumpPatch, false},
		{"prerelease", BumpPrerelease, false},
		{"pre-release", BumpPrerelease, false},
		{"explicit", "", true},
		{"", "", true},
		{"MAJOR", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			bt, err := ParseBumpType(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseBumpType(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if !tt.wantErr && bt != tt.wantBT {
				t.Errorf("ParseBumpType(%q) = %v, want %v", tt.input, bt, tt.wantBT)
			}
		})
	}
}

func TestParseDirective(t *testing.T) {
	tests := []struct {
		input   string
		by      uint64
		want    Directive
		wantErr bool
	}{
		{"minor", 2, Directive{Type: BumpMinor, IncrementBy: 2}, false},
		{"patch", 0, Directive{Type: BumpPatch, IncrementBy: 1}, false},
		{"pre-release", 1, Directive{Type: BumpPrerelease, IncrementBy: 1}, false},
		{"1.0.0", 1, Directive{Type: BumpExplicit, Explicit: "1.0.0"}, false},
		{"latest", 1, Directive{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseDirective(tt.input, tt.by)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseDirective() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseDirective() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestDirective_Apply(t *testing.T) {
	tests := []struct {
		name       string
		directive  Directive
		last       *SemanticVersion
		allowOlder bool
		want       string
		wantErr    error
	}{
		{"default on new component", DefaultDirective(), nil, false, "0.0.1", nil},
		{"minor on new component", NewBumpDirective(BumpMinor, 1), nil, false, "0.1.0", nil},
		{"major on new component", NewBumpDirective(BumpMajor, 1), nil, false, "1.0.0", nil},
		{"patch", DefaultDirective(), ptr("1.2.3"), false, "1.2.4", nil},
		{"patch by two", NewBumpDirective(BumpPatch, 2), ptr("0.0.1"), false, "0.0.3", nil},
		{"minor resets patch", NewBumpDirective(BumpMinor, 1), ptr("1.2.3"), false, "1.3.0", nil},
		{"major resets lower", NewBumpDirective(BumpMajor, 3), ptr("1.2.3"), false, "4.0.0", nil},
		{"patch releases prerelease", DefaultDirective(), ptr("1.0.1-dev.3"), false, "1.0.1", nil},
		{"patch by two from prerelease", NewBumpDirective(BumpPatch, 2), ptr("1.0.1-dev.0"), false, "1.0.2", nil},
		{"minor releases prerelease", NewBumpDirective(BumpMinor, 1), ptr("1.1.0-rc.2"), false, "1.1.0", nil},
		{"minor from patch prerelease", NewBumpDirective(BumpMinor, 1), ptr("1.0.1-dev.0"), false, "1.1.0", nil},
		{"major releases prerelease", NewBumpDirective(BumpMajor, 1), ptr("2.0.0-rc.1"), false, "2.0.0", nil},
		{"major from minor prerelease", NewBumpDirective(BumpMajor, 1), ptr("2.1.0-rc.1"), false, "3.0.0", nil},
		{"patch drops metadata", DefaultDirective(), ptr("1.2.3+build.7"), false, "1.2.4", nil},
		{"start prerelease", NewPrereleaseDirective("dev"), ptr("1.0.0"), false, "1.0.1-dev.0", nil},
		{"continue prerelease", NewPrereleaseDirective("dev"), ptr("1.0.1-dev.0"), false, "1.0.1-dev.1", nil},
		{"continue prerelease without id", NewPrereleaseDirective(""), ptr("1.0.1-dev.4"), false, "1.0.1-dev.5", nil},
		{"switch prerelease id", NewPrereleaseDirective("rc"), ptr("1.0.1-dev.4"), false, "1.0.1-rc.0", nil},
		{"bare numeric prerelease", NewPrereleaseDirective(""), ptr("1.0.0"), false, "1.0.1-0", nil},
		{"prerelease on new component", NewPrereleaseDirective("dev"), nil, false, "0.0.1-dev.0", nil},
		{"explicit on new component", NewExplicitDirective("1.0.0"), nil, false, "1.0.0", nil},
		{"explicit newer", NewExplicitDirective("2.0.0"), ptr("1.0.0"), false, "2.0.0", nil},
		{"explicit older rejected", NewExplicitDirective("0.9.0"), ptr("1.0.0"), false, "", ErrCannotDowngrade},
		{"explicit equal rejected", NewExplicitDirective("1.0.0"), ptr("1.0.0"), false, "", ErrCannotDowngrade},
		{"explicit older allowed", NewExplicitDirective("0.9.0"), ptr("1.0.0"), true, "0.9.0", nil},
		{"explicit invalid", NewExplicitDirective("nope"), nil, false, "", ErrInvalidVersion},
		{"unknown type", Directive{Type: "sideways"}, nil, false, "", ErrInvalidBumpType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.directive.Apply(tt.last, tt.allowOlder)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Apply() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Apply() unexpected error = %v", err)
			}
			if got.String() != tt.want {
				t.Errorf("Apply() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDirective_String(t *testing.T) {
	if got := NewBumpDirective(BumpMinor, 2).String(); got != "minor+2" {
		t.Errorf("String() = %q", got)
	}
	if got := NewExplicitDirective("1.0.0").String(); got != "explicit(1.0.0)" {
		t.Errorf("String() = %q", got)
	}
	if got := NewPrereleaseDirective("dev").String(); got != "prerelease(dev)" {
		t.Errorf("String() = %q", got)
	}
}
