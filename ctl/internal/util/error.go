package util

// CtlError carries an exit code alongside the actual error so commands can signal outcomes
// beyond pass/fail, like a create that was rolled back cleanly. The root command maps it to the
// process exit code.
type CtlError struct {
	inner    error
	exitCode CtlExitCode
}

type CtlExitCode int

const (
	Success CtlExitCode = iota
	GeneralError
	PartialSuccess
)

func (c CtlExitCode) String() string {
	switch c {
	case Success:
		return "Success"
	case GeneralError:
		return "General Error"
	case PartialSuccess:
		return "Partial Success"
	default:
		return "Unknown"
	}
}

// NewCtlError wraps err with the exit code the process should terminate with. Return the result
// from a command's RunE.
func NewCtlError(err error, exitCode CtlExitCode) CtlError {
	return CtlError{inner: err, exitCode: exitCode}
}

func (err *CtlError) GetExitCode() int {
	return int(err.exitCode)
}

func (err CtlError) Error() string {
	return err.inner.Error()
}

// Unwrap exposes the inner error so errors.Is/As keep working through the exit-code wrapper.
func (err CtlError) Unwrap() error {
	return err.inner
}
