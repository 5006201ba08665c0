// Package ldd computes the shared libraries an executable needs.
//
// [Resolver.Resolve] runs ldd(1) against an executable and parses the output
// either into absolute host paths, for copying libraries out of the host, or
// into basenames, for matching library files during a walk of a root
// filesystem whose layout differs from the host's. Resolution is best effort:
// an executable that is static, or an ldd that is missing or fails, yields no
// libraries, and the [Result] says which of these happened.
//
// [Chain] follows a symlink one hop at a time so that a kept link such as
// libfoo.so -> libfoo.so.1 -> libfoo.so.1.2.3 is kept with every hop, not
// just the final file. Cycles are reported as [ErrSymlinkCycle].
//
// Example usage:
//
//	r := ldd.New()
//	res := r.Resolve(ctx, "/usr/bin/curl", true)
//	if res.Outcome == ldd.ToolFailed {
//	    slog.Warn("ldd failed", "error", res.Err)
//	}
//	for lib := range res.Libraries {
//	    hops, err := ldd.Chain("/", lib)
//	    ...
//	}
package ldd
