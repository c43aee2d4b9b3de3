package envspec_test

import (
	"testing"

	"github.com/pipg-project/pipg/internal/envspec"
)

func TestParseWheelFilename(t *testing.T) {
	name, version, tag, err := envspec.ParseWheelFilename("flask-3.0.0-py3-none-any.whl")
	if err != nil {
		t.Fatalf("ParseWheelFilename() error: %v", err)
	}

	if name != "flask" || version != "3.0.0" {
		t.Errorf("got name=%q version=%q, want flask 3.0.0", name, version)
	}

	if tag.Python != "py3" || tag.ABI != "none" || tag.Platform != "any" {
		t.Errorf("unexpected tag: %+v", tag)
	}
}

func TestParseWheelFilenameInvalid(t *testing.T) {
	if _, _, _, err := envspec.ParseWheelFilename("not-a-wheel"); err == nil {
		t.Error("expected error for malformed filename")
	}
}

func TestScorePrefersHigherPriorityTag(t *testing.T) {
	spec := envspec.EnvSpec{
		SupportedTags: []envspec.Tag{
			{Python: "cp312", ABI: "cp312", Platform: "manylinux_2_17_x86_64"},
			{Python: "cp312", ABI: "abi3", Platform: "manylinux_2_17_x86_64"},
			{Python: "py3", ABI: "none", Platform: "any"},
		},
	}

	tests := []struct {
		filename  string
		wantScore int
		wantOK    bool
	}{
		{"pkg-1.0-cp312-cp312-manylinux_2_17_x86_64.whl", 0, true},
		{"pkg-1.0-cp312-abi3-manylinux_2_17_x86_64.whl", 1, true},
		{"pkg-1.0-py3-none-any.whl", 2, true},
		{"pkg-1.0-cp39-cp39-win_amd64.whl", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			score, ok := spec.Score(tt.filename)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}

			if ok && score != tt.wantScore {
				t.Errorf("score = %d, want %d", score, tt.wantScore)
			}
		})
	}
}

func TestCompoundTagMatchesAnyValue(t *testing.T) {
	spec := envspec.EnvSpec{
		SupportedTags: []envspec.Tag{{Python: "py3", ABI: "none", Platform: "any"}},
	}

	score, ok := spec.Score("pkg-1.0-py2.py3-none-any.whl")
	if !ok || score != 0 {
		t.Errorf("expected compound tag py2.py3 to match py3, got score=%d ok=%v", score, ok)
	}
}

func TestIsPureWheel(t *testing.T) {
	if !envspec.IsPureWheel("pkg-1.0-py3-none-any.whl") {
		t.Error("expected pure wheel to be detected")
	}

	if envspec.IsPureWheel("pkg-1.0-cp312-cp312-manylinux_2_17_x86_64.whl") {
		t.Error("expected platform-specific wheel to not be pure")
	}
}
