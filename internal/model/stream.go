package model

// StreamClass is the verdict for a single stream candidate.
type StreamClass string

const (
	StreamNone      StreamClass = "none"
	StreamConfirmed StreamClass = "confirmed"
	StreamVideoFile StreamClass = "video-file"
	StreamPotential StreamClass = "potential"
)

// StreamCandidate is a guessed URL combining scheme, port and path.
type StreamCandidate struct {
	Scheme string `json:"scheme"`
	Port   int    `json:"port"`
	Path   string `json:"path"`
	URL    string `json:"url"`
}

// Stream is a verified candidate.
type Stream struct {
	StreamCandidate
	Class           StreamClass `json:"class"`
	ContentType     string      `json:"content_type,omitempty"`
	ContentLength   string      `json:"content_length,omitempty"`
	BrowserViewable bool        `json:"browser_viewable"`
	Detail          string      `json:"detail,omitempty"`
}

// StreamResult is the output of the stream enumerator.
type StreamResult struct {
	Brands    []Brand  `json:"brands,omitempty"`
	Suggested []string `json:"suggested,omitempty"`
	Streams   []Stream `json:"streams,omitempty"`
	Checked   int      `json:"checked"`
}

func (r StreamResult) Found() bool {
	return len(r.Streams) > 0 || len(r.Suggested) > 0
}
