// Package fileutil provides the filesystem helpers shared by the runtime
// provisioner and the supervisor.
//
// WriteFile and CopyFile write through a temporary file in the destination
// directory and rename it into place, so readers never observe a partially
// written runtime archive or engine binary. CopyTree and CopyFS copy whole
// directory trees, preserving executable bits. RemoveTree deletes a scratch
// directory without failing on individual entries, which is the teardown
// contract of a supervisor's working directory.
package fileutil
