package constants

// Stage names one step of the parse pipeline. The values double as keys in process_times.
type Stage string

const (
	StagePreProcessing Stage = "pre_processing"
	StageTranscription Stage = "transcription"
	StageExtraction    Stage = "extraction"
)

// Stages lists the pipeline steps in execution order.
var Stages = []Stage{StagePreProcessing, StageTranscription, StageExtraction}
