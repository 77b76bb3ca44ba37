// Package command builds the ordered list of executable invocations the
// supervisor tries when launching the engine helper.
//
// Candidates come from three sources, in priority order: a runtime binary
// resolved by the provisioner, explicit override commands, and generic names
// looked up in PATH. Override strings are split on ';' and each alternative is
// tokenized with shell-like quoting rules (see Tokenize).
package command
