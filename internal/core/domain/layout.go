package domain

import "path/filepath"

const (
	// ReactorDirName is the name of the internal workspace directory.
	ReactorDirName = ".reactor"

	// ProjectFileName is the name of the project configuration file.
	ProjectFileName = "reactor.yaml"

	// StateFileName is the name of the persisted build state file.
	StateFileName = "state.json"

	// RecordsFileName is the name of the module record database.
	RecordsFileName = "records.db"

	// BuildsDirName holds per-build log directories.
	BuildsDirName = "builds"

	// ArtifactsDirName holds archived artifacts.
	ArtifactsDirName = "artifacts"

	// BuildLogFileName is the name of the aggregate build log inside a build directory.
	BuildLogFileName = "build.log"

	// DirPerm is the default permission for directories (rwxr-x---).
	DirPerm = 0o750

	// FilePerm is the default permission for files (rw-r--r--).
	FilePerm = 0o644
)

// DefaultStatePath returns the state file path relative to the project root.
func DefaultStatePath() string {
	return filepath.Join(ReactorDirName, StateFileName)
}

// DefaultRecordsPath returns the record database path relative to the project root.
func DefaultRecordsPath() string {
	return filepath.Join(ReactorDirName, RecordsFileName)
}

// BuildDir returns the directory holding the logs of one build.
func BuildDir(root, buildID string) string {
	return filepath.Join(root, ReactorDirName, BuildsDirName, buildID)
}

// ModuleLogPath returns the log file of one module within one build.
func ModuleLogPath(root, buildID string, name ModuleName) string {
	return filepath.Join(BuildDir(root, buildID), name.FileName()+".log")
}

// ArtifactDir returns the archive directory of one module within one build.
func ArtifactDir(root, buildID string, name ModuleName) string {
	return filepath.Join(root, ReactorDirName, ArtifactsDirName, buildID, name.FileName())
}
