package upload

import "context"

// Uploader publishes exported run artifacts to remote storage.
type Uploader interface {
	// Preflight verifies that the remote storage is reachable and writable.
	// Writes a small test object to the bucket to fail fast on misconfiguration.
	Preflight(ctx context.Context) error

	// PutArtifact uploads a single in-memory artifact under the
	// configured prefix and the run id.
	PutArtifact(ctx context.Context, runID, name string, data []byte) error

	// UploadDir uploads all files in localDir under the configured
	// prefix and the run id, preserving the directory layout.
	UploadDir(ctx context.Context, runID, localDir string) error
}
