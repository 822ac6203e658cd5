package domain

import (
	"cmp"
	"strings"

	"go.trai.ch/zerr"
)

const (
	// VersionNone marks a dependency declared without a version.
	VersionNone = "(none)"
	// VersionUnknown marks a dependency whose version could not be resolved.
	VersionUnknown = "(unknown)"
)

// ModuleName identifies a module by group and artifact.
type ModuleName struct {
	Group    InternedString
	Artifact InternedString
}

// NewModuleName creates a ModuleName from its parts.
func NewModuleName(group, artifact string) ModuleName {
	return ModuleName{
		Group:    NewInternedString(group),
		Artifact: NewInternedString(artifact),
	}
}

// ParseModuleName parses the "group:artifact" form.
func ParseModuleName(s string) (ModuleName, error) {
	group, artifact, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok || group == "" || artifact == "" || strings.Contains(artifact, ":") {
		return ModuleName{}, zerr.With(zerr.Wrap(ErrInvalidModuleName, "cannot parse module name"), "module", s)
	}
	return NewModuleName(group, artifact), nil
}

// String returns the "group:artifact" form.
func (n ModuleName) String() string {
	return n.Group.String() + ":" + n.Artifact.String()
}

// FileName returns a filesystem-safe form used for per-module log and artifact paths.
func (n ModuleName) FileName() string {
	return n.Group.String() + "$" + n.Artifact.String()
}

// Compare orders module names by group, then artifact.
func (n ModuleName) Compare(other ModuleName) int {
	if c := cmp.Compare(n.Group.String(), other.Group.String()); c != 0 {
		return c
	}
	return cmp.Compare(n.Artifact.String(), other.Artifact.String())
}

// MarshalText implements encoding.TextMarshaler so that names can be JSON map keys.
func (n ModuleName) MarshalText() ([]byte, error) {
	return []byte(n.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (n *ModuleName) UnmarshalText(text []byte) error {
	parsed, err := ParseModuleName(string(text))
	if err != nil {
		return err
	}
	*n = parsed
	return nil
}

// ModuleDependency is a versioned reference from one module to another.
type ModuleDependency struct {
	Name    ModuleName
	Version string
	// Plugin marks a build-plugin dependency rather than a library dependency.
	Plugin bool
}

// ParseModuleDependency parses the "group:artifact[:version]" form.
// A missing version becomes VersionNone and an unresolved property
// reference such as "${project.version}" becomes VersionUnknown.
func ParseModuleDependency(s string) (ModuleDependency, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 || parts[0] == "" || parts[1] == "" {
		return ModuleDependency{}, zerr.With(zerr.Wrap(ErrInvalidModuleName, "cannot parse dependency"), "dependency", s)
	}
	dep := ModuleDependency{
		Name:    NewModuleName(parts[0], parts[1]),
		Version: VersionNone,
	}
	if len(parts) == 3 && parts[2] != "" {
		dep.Version = parts[2]
		if strings.Contains(dep.Version, "${") {
			dep.Version = VersionUnknown
		}
	}
	return dep, nil
}

// Matches reports whether the dependency resolves to a module with the given
// name and version. Sentinel versions match any version.
func (d ModuleDependency) Matches(name ModuleName, version string) bool {
	if d.Name != name {
		return false
	}
	switch d.Version {
	case VersionNone, VersionUnknown:
		return true
	}
	return version == "" || d.Version == version
}

// String returns the "group:artifact[:version]" form.
func (d ModuleDependency) String() string {
	if d.Version == VersionNone || d.Version == "" {
		return d.Name.String()
	}
	return d.Name.String() + ":" + d.Version
}

// Module is one buildable unit of the project.
type Module struct {
	Name    ModuleName
	Version string
	// Path is the module directory relative to the project root, using forward slashes.
	// The root module has an empty path.
	Path         string
	Dependencies []ModuleDependency
	// Artifacts are files, relative to the module directory, produced by the build.
	Artifacts []string
}
