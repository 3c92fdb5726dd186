package mot

// UnknownIdentity is the label recognition service uses for faces/objects it could not identify
const UnknownIdentity = "Unknown"

// RawDetection is a single record received from recognition service.
// BBox is [x1, y1, x2, y2] in pixel space of the (downscaled) captured frame.
type RawDetection struct {
	BBox     [4]float64
	HasBBox  bool
	Identity string
	// Metadata holds every passthrough field of the record
	Metadata map[string]any
}

// NewRawDetection creates detection with bounding box set
func NewRawDetection(x1, y1, x2, y2 float64, identity string) RawDetection {
	return RawDetection{
		BBox:     [4]float64{x1, y1, x2, y2},
		HasBBox:  true,
		Identity: identity,
	}
}

// MappedDetection is RawDetection placed into viewport space
type MappedDetection struct {
	RawDetection
	Position Position
}

// TrackedDetection is what rendering side receives
type TrackedDetection struct {
	TrackID  int            `json:"trackId"`
	Identity string         `json:"identity"`
	Position Position       `json:"position"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// PrimaryIdentity returns the first recognised identity among tracked detections.
// Falls back to the first identity at all and then to UnknownIdentity.
func PrimaryIdentity(tracked []TrackedDetection) string {
	for _, td := range tracked {
		if td.Identity != "" && td.Identity != UnknownIdentity {
			return td.Identity
		}
	}
	if len(tracked) > 0 && tracked[0].Identity != "" {
		return tracked[0].Identity
	}
	return UnknownIdentity
}
