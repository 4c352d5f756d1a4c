package lang

// detectConfidenceFloor is the minimum detection probability before
// the detected language is trusted. Below it the pipeline assumes
// Sindhi, the dominant input language of the deployment.
const detectConfidenceFloor = 0.5

// Route describes which pipeline stages run for a language and with
// which codes.
type Route struct {
	Tag   Tag
	Codes Codes

	// Translate is true when the NMT stage runs with target urd_Arab.
	Translate bool

	// UrduIsNative is true when the Urdu output field carries the
	// untranslated native transcript. True for Punjabi, where no
	// translation path exists and the limitation is surfaced to the
	// user rather than hidden.
	UrduIsNative bool

	// UrduVerbatim is true when the native transcript already is Urdu
	// and the Urdu output copies it without a translation call.
	UrduVerbatim bool
}

// RouteFor returns the stage routing for a tag. Urdu input skips
// translation entirely; Punjabi skips it and flags the output as
// native; everything else with a non-Urdu script translates.
func RouteFor(t Tag) (Route, error) {
	codes, err := Resolve(t)
	if err != nil {
		return Route{}, err
	}

	r := Route{Tag: t, Codes: codes}
	switch t {
	case "ur":
		r.UrduVerbatim = true
	case "pa":
		r.UrduIsNative = true
	default:
		r.Translate = true
	}
	return r, nil
}

// ResolveDetected maps a language tag reported by the ASR model to a
// routable tag. Low-confidence detections and tags outside the
// mapping table fall back to Sindhi rather than failing the job:
// detection is advisory, unlike an explicit user selection.
func ResolveDetected(detected string, confidence float64) Tag {
	t := Tag(detected)
	if !Known(t) || confidence < detectConfidenceFloor {
		return "sd"
	}
	return t
}
