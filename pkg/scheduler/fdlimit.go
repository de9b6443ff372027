package scheduler

import "syscall"

// getFDSoftLimit reads the process's current file-descriptor soft limit
// (spec.md §5's resource bound). There is no third-party rlimit wrapper
// among the pack's dependencies, and syscall.Getrlimit is the direct,
// single-call stdlib primitive for it on Unix — a dependency would only
// wrap this same syscall.
func getFDSoftLimit() (int, error) {
	var rlimit syscall.Rlimit
	if err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &rlimit); err != nil {
		return 0, err
	}
	return int(rlimit.Cur), nil
}
