package domain

import "go.trai.ch/zerr"

var (
	// ErrModuleAlreadyExists is returned when two modules share the same group and artifact.
	ErrModuleAlreadyExists = zerr.New("module already exists")

	// ErrCycleDetected is returned when a cycle is detected in the module dependency graph.
	ErrCycleDetected = zerr.New("cycle detected")

	// ErrModuleNotFound is returned when a requested module is not part of the graph.
	ErrModuleNotFound = zerr.New("module not found")

	// ErrInvalidModuleName is returned when a module coordinate is not of the form group:artifact[:version].
	ErrInvalidModuleName = zerr.New("invalid module name, expected group:artifact[:version]")

	// ErrInvalidResult is returned when a result name cannot be parsed.
	ErrInvalidResult = zerr.New("invalid build result")

	// ErrInvalidModuleState is returned when a module state name cannot be parsed.
	ErrInvalidModuleState = zerr.New("invalid module state")

	// ErrInvalidMode is returned when the configured build mode is unknown.
	ErrInvalidMode = zerr.New("invalid build mode, expected 'aggregate' or 'per-module'")

	// ErrConfigReadFailed is returned when the project file cannot be read.
	ErrConfigReadFailed = zerr.New("failed to read project file")

	// ErrConfigParseFailed is returned when the project file cannot be parsed.
	ErrConfigParseFailed = zerr.New("failed to parse project file")

	// ErrGraphDiscoveryFailed is returned when the module graph cannot be determined.
	ErrGraphDiscoveryFailed = zerr.New("module graph discovery failed")

	// ErrMissingInstallation is returned when the configured tool or runtime home does not exist.
	ErrMissingInstallation = zerr.New("tool installation not found")

	// ErrListenFailed is returned when the launcher cannot open a listening endpoint.
	ErrListenFailed = zerr.New("failed to open worker listener")

	// ErrSpawnFailed is returned when the worker process cannot be started.
	ErrSpawnFailed = zerr.New("failed to launch worker process")

	// ErrAcceptTimeout is returned when no worker connects back within the handshake timeout.
	ErrAcceptTimeout = zerr.New("timed out waiting for worker to connect")

	// ErrWorkerExited is returned when the worker process died before completing the handshake.
	ErrWorkerExited = zerr.New("failed to launch worker")

	// ErrHandshakeFailed is returned when the worker connected but the hello exchange failed.
	ErrHandshakeFailed = zerr.New("worker handshake failed")

	// ErrUnsupportedProtocol is returned when a worker reports a protocol version this build does not speak.
	ErrUnsupportedProtocol = zerr.New("unsupported worker protocol")

	// ErrSanityCheckFailed is returned when a pooled worker does not answer the reuse check.
	ErrSanityCheckFailed = zerr.New("pooled worker failed sanity check")

	// ErrProtocolViolation is returned when a proxy call arrives out of state order.
	ErrProtocolViolation = zerr.New("build proxy protocol violation")

	// ErrUnknownHandle is returned when a remote call targets an object that is not exported.
	ErrUnknownHandle = zerr.New("unknown object handle")

	// ErrUnknownMethod is returned when a remote call names a method the target does not have.
	ErrUnknownMethod = zerr.New("unknown method")

	// ErrUnknownCallable is returned when an async callable name is not registered.
	ErrUnknownCallable = zerr.New("unknown async callable")

	// ErrAsyncFailed is returned when an async callable scheduled during the build failed.
	ErrAsyncFailed = zerr.New("async callable failed")

	// ErrChannelClosed is returned when a call is attempted on a closed channel.
	ErrChannelClosed = zerr.New("channel closed")

	// ErrBuildExecutionFailed is returned when the build finished with a failing result.
	ErrBuildExecutionFailed = zerr.New("build execution failed")

	// ErrNoBaseline is returned when no previous revision exists to compute changes against.
	ErrNoBaseline = zerr.New("no baseline revision")

	// ErrStateReadFailed is returned when the persisted build state cannot be read.
	ErrStateReadFailed = zerr.New("failed to read build state")

	// ErrStateWriteFailed is returned when the build state cannot be persisted.
	ErrStateWriteFailed = zerr.New("failed to write build state")

	// ErrRecordStoreFailed is returned when a module record cannot be persisted or read.
	ErrRecordStoreFailed = zerr.New("module record store failed")

	// ErrNoPreviousBuild is returned when a report is requested before any build ran.
	ErrNoPreviousBuild = zerr.New("no previous build recorded")

	// ErrToolFailed is returned when a tool command exits unsuccessfully.
	ErrToolFailed = zerr.New("tool command failed")
)
