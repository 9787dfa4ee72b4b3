package ingest

// Stage is the position of a dropped file in the ingest pipeline.
type Stage string

const (
	StageDetected       Stage = "detected"
	StageClassified     Stage = "classified"
	StageQuarantined    Stage = "quarantined"
	StageMetadataLoaded Stage = "metadata_loaded"
	StageDuplicate      Stage = "duplicate"
	StageRegistered     Stage = "registered"
	StageUploaded       Stage = "uploaded"
	StageRelocated      Stage = "relocated"
	StageFailed         Stage = "failed"
)

var allStages = []Stage{
	StageDetected,
	StageClassified,
	StageQuarantined,
	StageMetadataLoaded,
	StageDuplicate,
	StageRegistered,
	StageUploaded,
	StageRelocated,
	StageFailed,
}

// AllStages lists every stage in pipeline order.
func AllStages() []Stage {
	out := make([]Stage, len(allStages))
	copy(out, allStages)
	return out
}

// ParseStage converts a stored string back into a Stage.
func ParseStage(value string) (Stage, bool) {
	for _, s := range allStages {
		if string(s) == value {
			return s, true
		}
	}
	return "", false
}

// Terminal reports whether no further transition can happen in this run.
func (s Stage) Terminal() bool {
	switch s {
	case StageQuarantined, StageDuplicate, StageRelocated, StageFailed:
		return true
	default:
		return false
	}
}

func (s Stage) String() string { return string(s) }
