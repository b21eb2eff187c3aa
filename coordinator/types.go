package coordinator

import (
	"github.com/sinvec/gimp-kandinsky/jobstate"
	"github.com/sinvec/gimp-kandinsky/kandinsky"
	"github.com/sinvec/gimp-kandinsky/pixelbuf"
)

// MaxRequestBytes is the size of the largest InpaintRequest Submit accepts: an
// RGBA image and an RGB mask at MaxImageSize on each side, base64 encoded, with
// a megabyte left for the prompt and the other fields.
const MaxRequestBytes int64 = base64Image + base64Mask + 1<<20

const (
	maxPixels   = kandinsky.MaxImageSize * kandinsky.MaxImageSize
	base64Image = 4 * ((maxPixels*pixelbuf.ChannelsRGBA + 2) / 3)
	base64Mask  = 4 * ((maxPixels*pixelbuf.ChannelsRGB + 2) / 3)
)

// Status values carried in every response.
const (
	StatusInitiated   = "initiated"
	StatusBlocked     = "blocked"
	StatusInferencing = "inferencing"
	StatusListening   = "listening"
	StatusReady       = "ready"
	StatusEmpty       = "empty"
)

// InpaintRequest is the submit payload. Image and Mask are base64 flat pixel
// buffers; the image carries alpha when HasAlpha is set, the mask never does.
type InpaintRequest struct {
	Prompt   string `json:"prompt"`
	Image    string `json:"image"`
	Mask     string `json:"mask"`
	HasAlpha bool   `json:"has_alpha"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`

	DecoderSteps  int     `json:"decoder_steps"`
	PriorSteps    int     `json:"prior_steps"`
	GuidanceScale float64 `json:"cgs_scale"`
	ImageNumber   int     `json:"image_number"`

	NegativePriorPrompt   string `json:"negative_prior_prompt,omitempty"`
	NegativeDecoderPrompt string `json:"negative_decoder_prompt,omitempty"`
}

// TokenRequest is the body of progress and result queries.
type TokenRequest struct {
	Token string `json:"token"`
}

// SubmitResponse answers Submit. Token is set only when Status is "initiated".
type SubmitResponse struct {
	Status string `json:"status"`
	Token  string `json:"token,omitempty"`
}

// ProgressResponse answers Progress.
type ProgressResponse struct {
	Status   string                  `json:"status"`
	Progress jobstate.ProgressVector `json:"progress"`
}

// ResultResponse answers CollectResult. Images, Width and Height are set only
// when Status is "ready"; each image is a base64 RGBA buffer.
type ResultResponse struct {
	Status string   `json:"status"`
	Images []string `json:"images,omitempty"`
	Width  int      `json:"width,omitempty"`
	Height int      `json:"height,omitempty"`
}

// Snapshot is the coordinator's view for health reporting.
type Snapshot struct {
	Status        string                  `json:"status"`
	Token         string                  `json:"token,omitempty"`
	Progress      jobstate.ProgressVector `json:"progress"`
	ResultPending bool                    `json:"result_pending"`
}
