package domain

import (
	"strings"
	"time"

	"go.trai.ch/zerr"
)

// ModuleState tracks where a module is in its build lifecycle.
type ModuleState uint8

const (
	// ModuleNotStarted is the initial state of every module in a build.
	ModuleNotStarted ModuleState = iota
	// ModuleStarted means the worker announced the module started building.
	ModuleStarted
	// ModuleEnded means the module finished and its result is final.
	ModuleEnded
)

var moduleStateNames = [...]string{
	ModuleNotStarted: "NOT_STARTED",
	ModuleStarted:    "STARTED",
	ModuleEnded:      "ENDED",
}

// String returns the upper-case name of the state.
func (s ModuleState) String() string {
	if int(s) < len(moduleStateNames) {
		return moduleStateNames[s]
	}
	return "UNKNOWN"
}

// MarshalText implements encoding.TextMarshaler.
func (s ModuleState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *ModuleState) UnmarshalText(text []byte) error {
	for i, name := range moduleStateNames {
		if strings.EqualFold(name, string(text)) {
			*s = ModuleState(i)
			return nil
		}
	}
	return zerr.With(zerr.Wrap(ErrInvalidModuleState, "cannot parse module state"), "state", string(text))
}

// ExecutedTask describes one unit of work (a goal) the tool ran for a module.
type ExecutedTask struct {
	Name     string        `json:"name"`
	Duration time.Duration `json:"duration"`
	// Digest is a content hash of the executable that ran the task, when it could be resolved.
	Digest string `json:"digest,omitempty"`
}

// Archive is an artifact queued for archiving at the end of the build.
type Archive struct {
	// Relative is the destination path inside the module's archive directory.
	Relative string `json:"relative"`
	// Absolute is the source path inside the worker's workspace.
	Absolute string `json:"absolute"`
}

// ModuleRecord is the orchestrator's record of one module within one build.
type ModuleRecord struct {
	BuildID  string         `json:"buildId"`
	Module   ModuleName     `json:"module"`
	State    ModuleState    `json:"state"`
	Result   Result         `json:"result"`
	Tasks    []ExecutedTask `json:"tasks,omitempty"`
	Started  time.Time      `json:"started"`
	Duration time.Duration  `json:"duration"`
	Archives []Archive      `json:"archives,omitempty"`
	// Fingerprints maps archived artifacts to their content digest.
	Fingerprints map[string]string `json:"fingerprints,omitempty"`
}

// Clone returns a deep copy of the record.
func (r *ModuleRecord) Clone() ModuleRecord {
	c := *r
	c.Tasks = append([]ExecutedTask(nil), r.Tasks...)
	c.Archives = append([]Archive(nil), r.Archives...)
	if r.Fingerprints != nil {
		c.Fingerprints = make(map[string]string, len(r.Fingerprints))
		for k, v := range r.Fingerprints {
			c.Fingerprints[k] = v
		}
	}
	return c
}
