// Package core provides the local tools every agent run starts with.
//
// Tools:
//   - read_file: Read file contents
//   - write_file: Write content to a file
//   - append_file: Append content to a file
//   - list_dir: List directory contents
//   - evaluate: Evaluate a Go expression in a restricted sandbox
package core
