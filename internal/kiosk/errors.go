package kiosk

import "errors"

var (
	// ErrDeviceUnavailable signals that the camera could not be opened.
	ErrDeviceUnavailable = errors.New("capture device unavailable")

	// ErrNoFace signals that no face was found in the frame.
	ErrNoFace = errors.New("no face detected")

	// ErrMultipleFaces signals that more than one face was found.
	ErrMultipleFaces = errors.New("multiple faces detected")

	// ErrNoLandmarks signals that landmark extraction failed.
	ErrNoLandmarks = errors.New("no landmarks extracted")

	// ErrEmbeddingFailed signals that signature generation failed.
	ErrEmbeddingFailed = errors.New("embedding generation failed")
)
