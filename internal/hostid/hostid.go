// Package hostid derives a stable identifier for the physical machine
// jobman is running on, used to scope every store query so that a shared
// storage path cannot accidentally surface another machine's jobs.
package hostid

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"

	"golang.org/x/sys/unix"
)

var (
	once  sync.Once
	value string
	err   error
)

// Get returns the 12-character lowercase hex host id for the current
// machine, derived from uname(2) facts. The id is stable across
// invocations on the same host; it is not a secret and not a UUID.
func Get() (string, error) {
	once.Do(func() {
		value, err = compute()
	})
	return value, err
}

func compute() (string, error) {
	var uts unix.Utsname
	if uerr := unix.Uname(&uts); uerr != nil {
		return "", fmt.Errorf("uname: %w", uerr)
	}

	fields := []string{
		cstr(uts.Nodename[:]),
		"Linux",
		cstr(uts.Release[:]),
		cstr(uts.Version[:]),
		cstr(uts.Machine[:]),
		cstr(uts.Machine[:]), // uname(2) has no distinct "processor" field on Linux
	}

	joined := fields[0] + ";" + fields[1] + ";" + fields[2] + ";" + fields[3] + ";" + fields[4] + ";" + fields[5]
	sum := sha256.Sum256([]byte(joined))
	return hex.EncodeToString(sum[:])[:12], nil
}

func cstr(b []byte) string {
	n := 0
	for n < len(b) && b[n] != 0 {
		n++
	}
	return string(b[:n])
}
