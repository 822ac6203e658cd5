// Package protocol defines the messages exchanged between the orchestrator and
// a worker process.
package protocol

import (
	"strings"

	"go.trai.ch/reactor/internal/core/domain"
	"go.trai.ch/reactor/internal/remoting"
	"go.trai.ch/zerr"
)

// Worker methods served by the worker process.
const (
	MethodHello = "worker.hello"
	MethodReset = "worker.reset"
	MethodBuild = "worker.build"
)

// Orchestrator methods served by the orchestrator.
const (
	MethodConsoleWrite = "console.write"
)

// Version is a worker protocol generation.
type Version int

const (
	// V1 workers build exactly the modules they are sent.
	V1 Version = 1
	// V2 workers also expand the module set to downstream dependents on request.
	V2 Version = 2
)

// Current is the protocol version spoken by this binary's worker.
const Current = V2

const versionPrefix = "reactor/"

// String returns the wire form of the version.
func (v Version) String() string {
	switch v {
	case V1:
		return versionPrefix + "1"
	case V2:
		return versionPrefix + "2"
	}
	return versionPrefix + "unknown"
}

// ParseVersion resolves the version string a worker reports in its hello.
func ParseVersion(s string) (Version, error) {
	switch strings.TrimPrefix(s, versionPrefix) {
	case "1":
		return V1, nil
	case "2":
		return V2, nil
	}
	return 0, zerr.With(zerr.Wrap(domain.ErrUnsupportedProtocol, "cannot talk to worker"), "version", s)
}

// HelloReply is the worker's answer to MethodHello.
type HelloReply struct {
	Protocol string `json:"protocol"`
	// Encoding is the charset the worker's raw process output uses.
	Encoding string `json:"encoding"`
	// Env is the environment the worker process started with.
	Env []string `json:"env"`
	PID int      `json:"pid"`
}

// ResetParams asks the worker to restore its initial environment.
type ResetParams struct {
	Env []string `json:"env"`
}

// ModuleSpec describes one module of a build request.
type ModuleSpec struct {
	Name domain.ModuleName `json:"name"`
	// Dir is the absolute module directory.
	Dir       string              `json:"dir"`
	Upstream  []domain.ModuleName `json:"upstream,omitempty"`
	Artifacts []string            `json:"artifacts,omitempty"`
	// Proxy is the handle of the module's build proxy on the orchestrator.
	Proxy remoting.Handle `json:"proxy"`
}

// BuildRequest asks the worker to run a build.
type BuildRequest struct {
	BuildID string   `json:"buildId"`
	Root    string   `json:"root"`
	Goals   []string `json:"goals"`
	// Modules lists every module of the project in dependency order.
	Modules []ModuleSpec `json:"modules"`
	// Seeds restricts the build to these modules. Empty means every module.
	Seeds []domain.ModuleName `json:"seeds,omitempty"`
	// AlsoMakeDependents extends Seeds with their downstream dependents. V2 only.
	AlsoMakeDependents bool                `json:"alsoMakeDependents,omitempty"`
	FailFast           bool                `json:"failFast"`
	Tasks              map[string][]string `json:"tasks"`
	// ToolOptions is exported to tool commands as REACTOR_TOOL_OPTS.
	ToolOptions string `json:"toolOptions,omitempty"`
}

// BuildReply is the worker's result for a build request.
type BuildReply struct {
	Result domain.Result `json:"result"`
}

// ConsoleWrite carries raw console output produced on the worker. The bytes
// are decoded on the orchestrator with the charset reported at handshake.
type ConsoleWrite struct {
	Data []byte `json:"data"`
}
