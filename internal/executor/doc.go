// Package executor implements spec.md §4.1 (Executor) and §4.2 (Future
// Protocol): a single-threaded cooperative scheduler and the poll/waker
// contract every blocking operation in the module core — commits,
// dependency mutation, constructors — is written against.
package executor
