package output

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/LERCAutomation/DataSelector-ArcPro-sub000/internal/selection"
)

// DefaultStoreMarker is the suffix that marks a structured store container.
const DefaultStoreMarker = ".gdb"

// Part identifies which temporary object an artifact is copied from.
type Part string

const (
	PartPoint Part = "point"
	PartPoly  Part = "poly"
	PartFlat  Part = "flat"
)

// Split result suffixes, inserted before any extension.
const (
	PointSuffix = "_Point"
	PolySuffix  = "_Poly"
)

// Artifact is one concrete output.
type Artifact struct {
	Part Part   `json:"part"`
	Path string `json:"path"`
}

// Plan is the resolved output of one run.
type Plan struct {
	Requested Format     `json:"requested"`
	Resolved  Format     `json:"resolved"`
	Split     bool       `json:"split"`
	Target    string     `json:"target"`
	Artifacts []Artifact `json:"artifacts"`
}

// Paths returns the distinct artifact paths in artifact order.
func (p Plan) Paths() []string {
	var paths []string
	seen := make(map[string]bool)
	for _, a := range p.Artifacts {
		if !seen[a.Path] {
			seen[a.Path] = true
			paths = append(paths, a.Path)
		}
	}
	return paths
}

// Checker reports whether an output already exists.
type Checker interface {
	Exists(ctx context.Context, format Format, path string) (bool, error)
}

// Confirmer asks whether existing outputs may be replaced.
type Confirmer interface {
	ConfirmOverwrite(paths []string) (bool, error)
}

// Planner validates output paths and computes artifacts.
type Planner struct {
	checker Checker
	confirm Confirmer
	marker  string
}

// NewPlanner creates a Planner. An empty marker uses DefaultStoreMarker.
// A nil confirm declines every overwrite.
func NewPlanner(checker Checker, confirm Confirmer, marker string) *Planner {
	if marker == "" {
		marker = DefaultStoreMarker
	}
	return &Planner{checker: checker, confirm: confirm, marker: marker}
}

// Plan resolves the format, normalizes base and checks every artifact for
// pre-existence. If any artifact exists the Confirmer is asked; declining
// returns a KindCancelled error.
func (p *Planner) Plan(ctx context.Context, spatial bool, requested Format, base string) (Plan, error) {
	resolved := Resolve(spatial, requested)

	target, err := NormalizePath(resolved, base, p.marker)
	if err != nil {
		return Plan{}, err
	}

	plan := Plan{
		Requested: requested,
		Resolved:  resolved,
		Split:     spatial,
		Target:    target,
		Artifacts: Artifacts(resolved, spatial, target),
	}

	var existing []string
	for _, path := range plan.Paths() {
		ok, err := p.checker.Exists(ctx, resolved, path)
		if err != nil {
			return plan, selection.NewError(selection.KindPlanning, "check "+path, err)
		}
		if ok {
			existing = append(existing, path)
		}
	}
	if len(existing) == 0 {
		return plan, nil
	}

	overwrite := false
	if p.confirm != nil {
		overwrite, err = p.confirm.ConfirmOverwrite(existing)
		if err != nil {
			return plan, selection.NewError(selection.KindPlanning, "confirm overwrite", err)
		}
	}
	if !overwrite {
		return plan, selection.Errorf(selection.KindCancelled, "confirm overwrite",
			"%d output(s) exist and overwrite was declined", len(existing))
	}
	return plan, nil
}

// NormalizePath validates path against the container marker and appends the
// canonical extension of format when the path lacks it.
//
// Store formats need "<container><marker>/<object>" with an extension-free
// object name. Other formats must not point inside a container.
func NormalizePath(format Format, path, marker string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", selection.Errorf(selection.KindPlanning, "normalize path", "output path is empty")
	}
	path = filepath.Clean(path)

	if format.IsStore() {
		container, object := filepath.Split(path)
		container = filepath.Clean(container)
		if !hasSuffixFold(container, marker) {
			return "", selection.Errorf(selection.KindPlanning, "normalize path",
				"%s must name an object inside a %s container", path, marker)
		}
		if hasSuffixFold(object, marker) || filepath.Ext(object) != "" {
			return "", selection.Errorf(selection.KindPlanning, "normalize path",
				"store object name %q must not carry a file extension", object)
		}
		if containsMarker(container[:len(container)-len(marker)], marker) {
			return "", selection.Errorf(selection.KindPlanning, "normalize path",
				"%s is nested inside another %s container", path, marker)
		}
		return path, nil
	}

	if containsMarker(path, marker) {
		return "", selection.Errorf(selection.KindPlanning, "normalize path",
			"%s output cannot be written inside a %s container", format, marker)
	}
	if !strings.EqualFold(filepath.Ext(path), format.Extension()) {
		path += format.Extension()
	}
	return path, nil
}

// Artifacts lists the concrete outputs for a normalized target.
func Artifacts(format Format, split bool, target string) []Artifact {
	if !split {
		return []Artifact{{Part: PartFlat, Path: target}}
	}
	switch {
	case format.IsDelimited():
		return []Artifact{
			{Part: PartPoint, Path: target},
			{Part: PartPoly, Path: target},
		}
	default:
		ext := format.Extension()
		stem := target
		if hasSuffixFold(target, ext) {
			stem = target[:len(target)-len(ext)]
		}
		return []Artifact{
			{Part: PartPoint, Path: stem + PointSuffix + ext},
			{Part: PartPoly, Path: stem + PolySuffix + ext},
		}
	}
}

func hasSuffixFold(s, suffix string) bool {
	return len(s) >= len(suffix) && strings.EqualFold(s[len(s)-len(suffix):], suffix)
}

// containsMarker reports whether any path element ends with marker.
func containsMarker(path, marker string) bool {
	for _, elem := range strings.Split(filepath.ToSlash(path), "/") {
		if elem != "" && hasSuffixFold(elem, marker) {
			return true
		}
	}
	return false
}
