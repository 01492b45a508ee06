// Package memory holds in-process implementations of the repositories.
// They honour the same contracts and return the same sentinel errors as the
// MySQL repositories and are used by tests and local runs without a
// database.  Each store serializes access with its own mutex.
package memory
