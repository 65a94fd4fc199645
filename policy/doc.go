// Package policy provides optional declarative rules that can be applied on
// top of a running engine, for example to require human approval before a run
// modifies its own machine or to block selected tools outright.
package policy
