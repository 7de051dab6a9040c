package exception

import "github.com/yanun0323/errors"

// Pipeline errors
var (
	ErrPipelineNoStreams      = errors.New("pipeline: no streams")
	ErrPipelineInvalidStream  = errors.New("pipeline: invalid stream")
	ErrPipelineAlreadyStarted = errors.New("pipeline: already started")
	ErrDeadLetterNotFound     = errors.New("dead letter: not found")
)
