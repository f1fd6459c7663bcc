package domain

import "github.com/pkg/errors"

// ErrArtifactRejected marks a node-side validation rejection of a submitted
// artifact (e.g. bad signature). Resubmitting an invalid artifact cannot
// succeed, so callers must not retry on this error.
var ErrArtifactRejected = errors.New("artifact rejected by beacon node")
