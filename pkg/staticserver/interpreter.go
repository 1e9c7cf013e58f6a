package staticserver

import (
	"fmt"
	"os"
	"os/exec"
)

// InterpreterEnv names the environment variable that overrides interpreter
// discovery. It may hold a path or a name resolved through PATH.
const InterpreterEnv = "UNUSED_PORT_PYTHON"

// interpreterCandidates are tried in order when nothing is configured.
// python3 comes first because many systems still ship python as Python 2,
// whose http.server module does not exist.
var interpreterCandidates = []string{"python3", "python"}

// FindInterpreter locates the Python interpreter used to run http.server.
//
// The lookup order is:
//  1. the InterpreterEnv environment variable, resolved through PATH
//  2. python3 on PATH
//  3. python on PATH
//
// The error wraps ErrInterpreterNotFound when nothing matches.
func FindInterpreter() (string, error) {
	if name := os.Getenv(InterpreterEnv); name != "" {
		path, err := exec.LookPath(name)
		if err != nil {
			return "", fmt.Errorf("%w: %s=%q: %w", ErrInterpreterNotFound, InterpreterEnv, name, err)
		}
		return path, nil
	}

	for _, name := range interpreterCandidates {
		if path, err := exec.LookPath(name); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("%w: tried %v on PATH", ErrInterpreterNotFound, interpreterCandidates)
}

// resolveInterpreter returns the configured interpreter resolved through
// PATH, or the result of FindInterpreter when none is configured.
func (s *StaticServer) resolveInterpreter() (string, error) {
	if s.interpreter == "" {
		return FindInterpreter()
	}

	path, err := exec.LookPath(s.interpreter)
	if err != nil {
		return "", fmt.Errorf("%w: %q: %w", ErrInterpreterNotFound, s.interpreter, err)
	}
	return path, nil
}
