package registry

import (
	"strings"

	"labflow/internal/model"
)

// Snapshot is an immutable view of the active pipeline, loaded once per
// request so a concurrent stage edit cannot change the rules mid-check.
type Snapshot struct {
	stages []model.Stage
	byCode map[string]model.Stage
}

// NewSnapshot builds a snapshot from stages already sorted ascending by
// pipeline order.
func NewSnapshot(stages []model.Stage) *Snapshot {
	byCode := make(map[string]model.Stage, len(stages))
	for _, s := range stages {
		byCode[s.Code] = s
	}
	return &Snapshot{stages: stages, byCode: byCode}
}

// Stages returns the active stages ascending by pipeline order.
func (s *Snapshot) Stages() []model.Stage {
	return s.stages
}

// ByCode looks up an active stage.
func (s *Snapshot) ByCode(code string) (model.Stage, bool) {
	stage, ok := s.byCode[code]
	return stage, ok
}

// FirstApplicable returns the lowest-order stage applicable to the
// material; this is where new jobs start.
func (s *Snapshot) FirstApplicable(material string) (model.Stage, bool) {
	for _, stage := range s.stages {
		if IsApplicable(stage, material) {
			return stage, true
		}
	}
	return model.Stage{}, false
}

// NextApplicable returns the first stage strictly after the given order
// that is applicable to the material. Used to suggest, never to enforce,
// the next step.
func (s *Snapshot) NextApplicable(afterOrder int, material string) (model.Stage, bool) {
	for _, stage := range s.stages {
		if stage.Order <= afterOrder {
			continue
		}
		if IsApplicable(stage, material) {
			return stage, true
		}
	}
	return model.Stage{}, false
}

// NormalizeMaterial canonicalizes material names for comparison.
func NormalizeMaterial(material string) string {
	return strings.ToLower(strings.TrimSpace(material))
}

// IsApplicable reports whether a stage is relevant for a material. An
// empty compatible-material set means the stage applies to everything.
func IsApplicable(stage model.Stage, material string) bool {
	if len(stage.Materials) == 0 {
		return true
	}
	want := NormalizeMaterial(material)
	for _, m := range stage.Materials {
		if NormalizeMaterial(m) == want {
			return true
		}
	}
	return false
}
