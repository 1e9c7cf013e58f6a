// Package model defines the exit codes and the CLIError type shared by the
// unused-port command.
//
// Library packages (pkg/port, pkg/staticserver) return plain wrapped errors.
// The CLI layer translates them into a CLIError carrying the ExitCode the
// process should terminate with.
package model
