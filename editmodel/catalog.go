package editmodel

import "github.com/metavis/renderengine/internal/xerrors"

// FeatureCatalog is the closed set of fully-qualified feature ids the
// compiler will accept in a Clip's Effects list. Unknown ids fail
// preflight (spec §3 FeatureApplication, §6 feature ids).
var FeatureCatalog = map[string]bool{
	"mv.colorGrade":                  true,
	"mv.retime":                      true,
	"audio.dialogCleanwater.v1":      true,
	"com.metavis.fx.tonemap.aces":    true,
	"com.metavis.fx.false_color.turbo": true,
	"com.metavis.fx.lut3d":           true,
	"com.metavis.fx.watermark":       true,
}

// ValidateFeature checks a FeatureApplication's id against the catalog.
func ValidateFeature(app FeatureApplication) error {
	if !FeatureCatalog[app.ID] {
		return xerrors.Compile("unknown feature id", map[string]any{
			"featureId": app.ID,
		})
	}
	return nil
}

// LigmKind enumerates the recognized procedural asset kinds.
type LigmKind string

const (
	LigmSMPTEBars     LigmKind = "video/smpte_bars"
	LigmMacbeth       LigmKind = "video/macbeth"
	LigmZonePlate     LigmKind = "video/zone_plate"
	LigmFrameCounter  LigmKind = "video/frame_counter"
	LigmAudioSine     LigmKind = "audio/sine"
	LigmAudioWhite    LigmKind = "audio/white_noise"
	LigmAudioPink     LigmKind = "audio/pink_noise"
	LigmAudioSweep    LigmKind = "audio/sweep"
	LigmAudioImpulse  LigmKind = "audio/impulse"
	LigmAudioMarker   LigmKind = "audio/marker"
)

var knownLigmKinds = map[LigmKind]bool{
	LigmSMPTEBars: true, LigmMacbeth: true, LigmZonePlate: true,
	LigmFrameCounter: true, LigmAudioSine: true, LigmAudioWhite: true,
	LigmAudioPink: true, LigmAudioSweep: true, LigmAudioImpulse: true,
	LigmAudioMarker: true,
}

// IsKnownLigmKind reports whether kind is a recognized procedural kind.
func IsKnownLigmKind(kind LigmKind) bool { return knownLigmKinds[kind] }
