package resolver

import "testing"

func TestParseRequirementLineNamed(t *testing.T) {
	req := ParseRequirementLine("flask>=3.0")

	if req.Kind != KindNamed || req.Name != "flask" || req.Specifier != ">=3.0" {
		t.Errorf("got %+v", req)
	}
}

func TestParseRequirementLineVCS(t *testing.T) {
	req := ParseRequirementLine("git+https://github.com/pallets/flask.git@main#egg=flask")

	if req.Kind != KindVcs {
		t.Fatalf("Kind = %v, want KindVcs", req.Kind)
	}

	if req.VcsType != "git" {
		t.Errorf("VcsType = %q, want git", req.VcsType)
	}

	if req.VcsURL != "https://github.com/pallets/flask.git" {
		t.Errorf("VcsURL = %q, want https://github.com/pallets/flask.git", req.VcsURL)
	}

	if req.VcsRef != "main" {
		t.Errorf("VcsRef = %q, want main", req.VcsRef)
	}

	if req.Name != "flask" {
		t.Errorf("Name = %q, want flask", req.Name)
	}
}

func TestParseRequirementLineVCSEditable(t *testing.T) {
	req := ParseRequirementLine("-e git+https://github.com/pallets/flask.git#egg=flask")

	if !req.Editable {
		t.Error("expected Editable to be true")
	}

	if req.Kind != KindVcs {
		t.Errorf("Kind = %v, want KindVcs", req.Kind)
	}
}

func TestParseRequirementLineFileURL(t *testing.T) {
	req := ParseRequirementLine("flask @ https://example.org/flask-3.0.0-py3-none-any.whl")

	if req.Kind != KindFile {
		t.Fatalf("Kind = %v, want KindFile", req.Kind)
	}

	if req.Name != "flask" {
		t.Errorf("Name = %q, want flask", req.Name)
	}

	if req.URL != "https://example.org/flask-3.0.0-py3-none-any.whl" {
		t.Errorf("URL = %q", req.URL)
	}
}

func TestParseRequirementLineLocalPath(t *testing.T) {
	req := ParseRequirementLine("./vendor/flask")

	if req.Kind != KindFile {
		t.Fatalf("Kind = %v, want KindFile", req.Kind)
	}

	if req.URL != "./vendor/flask" {
		t.Errorf("URL = %q, want ./vendor/flask", req.URL)
	}
}

func TestParseRequirementLineWithMarker(t *testing.T) {
	req := ParseRequirementLine(`git+https://github.com/pallets/flask.git#egg=flask; python_version >= "3.8"`)

	if req.Marker != `python_version >= "3.8"` {
		t.Errorf("Marker = %q", req.Marker)
	}
}

func TestRequirementAsLineNamed(t *testing.T) {
	req := ParseRequirement(`flask[async]>=3.0; python_version >= "3.8"`)

	got := req.AsLine()

	roundTripped := ParseRequirementLine(got)
	if roundTripped.Name != req.Name || roundTripped.Specifier != req.Specifier || roundTripped.Marker != req.Marker {
		t.Errorf("AsLine() = %q did not round-trip: got %+v, want %+v", got, roundTripped, req)
	}
}

func TestRequirementAsLineVcs(t *testing.T) {
	req := ParseRequirementLine("git+https://github.com/pallets/flask.git@main#egg=flask")

	got := req.AsLine()

	roundTripped := ParseRequirementLine(got)
	if roundTripped.Kind != KindVcs || roundTripped.VcsURL != req.VcsURL || roundTripped.VcsRef != req.VcsRef || roundTripped.Name != req.Name {
		t.Errorf("AsLine() = %q did not round-trip: got %+v, want %+v", got, roundTripped, req)
	}
}

func TestRequirementAsLineEditable(t *testing.T) {
	req := ParseRequirementLine("-e git+https://github.com/pallets/flask.git#egg=flask")

	got := req.AsLine()
	if got[:3] != "-e " {
		t.Errorf("AsLine() = %q, want a leading -e for an editable requirement", got)
	}
}

func TestRequirementAsLineFile(t *testing.T) {
	req := ParseRequirementLine("flask @ https://example.org/flask-3.0.0-py3-none-any.whl")

	got := req.AsLine()

	roundTripped := ParseRequirementLine(got)
	if roundTripped.Kind != KindFile || roundTripped.URL != req.URL || roundTripped.Name != req.Name {
		t.Errorf("AsLine() = %q did not round-trip: got %+v, want %+v", got, roundTripped, req)
	}
}
