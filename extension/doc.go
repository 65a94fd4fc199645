// Package extension provides the run-time type registry that maps declared
// attribute type references (String, Array<String>, Map<String,Number>) to Go
// types used for typed context writes.
//
// The registry is normally configured through the public APIs under the root
// dygram package, therefore most applications do not need to import this
// package directly.
package extension
