// Package shell provides command execution tools.
//
// Tools:
//   - run_command: Execute a shell command
//   - run_build: Execute the project build command
//   - run_tests: Execute the project test command
//
// run_command is high risk and approval gated; it refuses commands that
// invoke any binary on the call's denied list.
package shell
