package cli

import (
	"context"
	"io"
)

// CLIResult is the outcome of one invocation.
type CLIResult struct {
	ExitCode int
}

// Run executes the CLI with args (excluding argv[0]) and returns the exit
// code plus any error. It is the entrypoint for main and black-box tests.
func Run(ctx context.Context, args []string, stdout, stderr io.Writer) (CLIResult, error) {
	cmd, state := newRootCommand(stdout, stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return CLIResult{ExitCode: ExitSuccess}, nil
	}
	if !state.started {
		// cobra rejected the command line before any command ran.
		if code := ExitCode(err); code == ExitInternalError {
			err = &InvocationError{ExitCode: ExitInvalidInvocation, Message: err.Error()}
		}
	}
	return CLIResult{ExitCode: ExitCode(err)}, err
}
