package domain

import (
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// Fingerprint captures the configuration a worker process was launched with.
// Two builds may share a worker only when their fingerprints are equal.
type Fingerprint struct {
	// ToolOptions is the extra options string passed to the build tool.
	ToolOptions string `json:"toolOptions"`
	// ToolHome is the build tool installation directory.
	ToolHome string `json:"toolHome"`
	// RuntimeHome is the runtime installation the worker runs on.
	RuntimeHome string `json:"runtimeHome"`
}

// Key returns a short stable digest of the fingerprint for logs and metrics.
func (f Fingerprint) Key() string {
	d := xxhash.New()
	_, _ = d.WriteString(f.ToolOptions)
	_, _ = d.Write([]byte{0})
	_, _ = d.WriteString(f.ToolHome)
	_, _ = d.Write([]byte{0})
	_, _ = d.WriteString(f.RuntimeHome)
	return strconv.FormatUint(d.Sum64(), 16)
}
