package domain

// Image normalization constraints.
//
// Every uploaded portrait is downscaled to fit within MaxImageDimension
// and re-encoded as JPEG at OutputJPEGQuality before it leaves the
// process, so the payload sent to the AI service has a bounded,
// predictable size regardless of what the user uploaded.
const (
	// MaxImageDimension is the upper bound for either axis of a
	// normalized image. Larger inputs are downscaled; smaller inputs
	// are never upscaled.
	MaxImageDimension = 1024

	// OutputJPEGQuality is the fixed lossy quality for re-encoding.
	OutputJPEGQuality = 90

	// OutputMediaType is the canonical media type of every normalized
	// image, independent of the input format.
	OutputMediaType = "image/jpeg"

	// MaxUploadSize is the maximum accepted upload size in bytes (20MB).
	MaxUploadSize = 20 * 1024 * 1024
)

// NormalizedImage is the bounded, transport-ready form of an uploaded
// portrait. Instances are immutable; a new upload produces a new value
// rather than mutating the old one.
type NormalizedImage struct {
	// Payload is the standard base64 encoding of the JPEG bytes, with
	// no data-URL header. This is what gets sent to the AI service.
	Payload string `json:"payload"`

	// MediaType is always OutputMediaType.
	MediaType string `json:"media_type"`

	// DataURL is the displayable form: "data:image/jpeg;base64," + Payload.
	DataURL string `json:"data_url"`

	Width  int `json:"width"`
	Height int `json:"height"`
}

// PosterResult is the outcome of one successful generation call.
type PosterResult struct {
	// ImageURL is a data URL carrying the generated poster image.
	ImageURL string `json:"image_url"`

	// Title and Tagline are best-effort extractions from the text
	// portion of the generation response. Either may be empty.
	Title   string `json:"title,omitempty"`
	Tagline string `json:"tagline,omitempty"`

	// ArchiveURL points at the archived copy in poster storage, when
	// archival succeeded. Empty otherwise.
	ArchiveURL string `json:"archive_url,omitempty"`
}
