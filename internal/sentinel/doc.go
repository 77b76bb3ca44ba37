// Package sentinel provides Error, a string type used to declare pglitenv's
// sentinel errors as constants.
//
// Constants cannot be reassigned by importers, unlike package-level variables
// created with errors.New, and they still compare correctly with errors.Is
// after being wrapped with fmt.Errorf("...: %w", err).
package sentinel
