package jobstate

import "image"

// Progress stage indexes.
const (
	StageImageEmbeds    = 0 // prior, positive prompt
	StageNegativeEmbeds = 1 // prior, negative prompt
	StageDecoder        = 2

	StageCount = 3
)

// ProgressVector holds completed steps per stage.
type ProgressVector [StageCount]int

// Sum returns the total completed steps across stages.
func (p ProgressVector) Sum() int {
	return p[StageImageEmbeds] + p[StageNegativeEmbeds] + p[StageDecoder]
}

// Job is a decoded inference request. Image and Mask are RGB buffers of
// Width×Height pixels.
type Job struct {
	Token string

	Prompt                string
	NegativePriorPrompt   string
	NegativeDecoderPrompt string

	Image  []byte
	Mask   []byte
	Width  int
	Height int

	PriorSteps    int
	DecoderSteps  int
	GuidanceScale float64
	ImageCount    int
}

// Ceilings returns the per-stage step limits for this job.
func (j *Job) Ceilings() ProgressVector {
	return ProgressVector{j.PriorSteps, j.PriorSteps, j.DecoderSteps}
}

// TotalSteps is the progress ceiling: decoder steps plus two prior passes.
func (j *Job) TotalSteps() int {
	return j.DecoderSteps + 2*j.PriorSteps
}

// Result is the output of one job. All images share Width×Height.
type Result struct {
	Token  string
	Images []image.Image
	Width  int
	Height int
}
