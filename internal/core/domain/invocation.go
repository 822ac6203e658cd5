package domain

// Invocation is one tool command run inside a module directory.
type Invocation struct {
	// Goal is the build goal the command implements.
	Goal    string
	Command []string
	// Dir is the absolute working directory.
	Dir string
	// Base is the environment the invocation starts from. Nil means the process environment.
	Base []string
	// ToolEnv holds tool-specific variables in KEY=VALUE form. Its PATH is prepended to the system PATH.
	ToolEnv []string
	// Environment holds overrides applied last.
	Environment map[string]string
}
