// Package storage holds pieces shared by the persistent stores: the common
// not-found sentinel and, in the postgres subpackage, pool construction and
// embedded schema migrations.
package storage
