package model

import "slices"

// QualityPreset names a format selection that does not depend on the formats
// a particular video offers
type QualityPreset string

const (
	QualityBest   QualityPreset = "best"
	QualityMedium QualityPreset = "medium"
	QualityAudio  QualityPreset = "audio"
)

// DefaultQualityPreset is used when a request names no format
const DefaultQualityPreset = QualityMedium

// QualityPresets returns the available presets
func QualityPresets() []QualityPreset {
	return []QualityPreset{QualityBest, QualityMedium, QualityAudio}
}

// IsValid returns true for known presets
func (p QualityPreset) IsValid() bool {
	return slices.Contains(QualityPresets(), p)
}
