package usage

import "errors"

var (
	ErrArtifactNotFound      = errors.New("artifact not found")
	ErrArtifactAlreadyExists = errors.New("artifact already exists")
	ErrFailedToConsume       = errors.New("failed to consume usage")
	ErrFailedToTrack         = errors.New("failed to track customisation")
)
