//go:build !unix

package storage

// lockFile is a no-op where flock is unavailable; writes stay atomic through
// rename but concurrent read-modify-write transactions may lose updates.
func lockFile(path string, exclusive bool) (func(), error) {
	_ = path
	_ = exclusive
	return func() {}, nil
}
