// Package locator keeps the named event services of a process.
//
// A Locator maps service names to event.Service instances. Names that are not yet
// registered can be created on demand from a kind table of zero-argument factories;
// two callers racing to create the same name always end up with the same instance.
package locator
