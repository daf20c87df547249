// Package exitcodes defines the process exit codes of rpc-harness.
package exitcodes

// Exit code constants:
//
// * Success (0): every planned test ran and its reports were written
// * TestFailure (1): the collection runner failed to produce a usable summary
// * RuntimeErr (2): configuration errors, missing inputs, report write failures or panics
const (
	Success     = 0
	TestFailure = 1
	RuntimeErr  = 2
)
