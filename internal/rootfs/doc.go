// Package rootfs moves files between the host and a root filesystem tree.
//
// Paths inside a root filesystem are image paths: "/etc/hosts" names
// <root>/etc/hosts, and symlinks met on the way are resolved inside the root,
// never on the host. [Resolve] follows a final symlink, [ResolveParent] does
// not, which is what operations on the link itself (delete, symlink, write
// over a link) need.
//
// [CopyInto] copies host files and trees into a root filesystem preserving
// permission bits, timestamps, and symlinks, overwriting what is there.
// [Extract] reduces a root filesystem to a set of kept paths plus every file
// whose basename matches a library set, moving rather than copying. Both
// delete only through [RemoveAll], which refuses to descend into a tree that
// still has mounts below it.
//
// Example usage:
//
//	dst, err := rootfs.ResolveParent(root, "/usr/bin/curl")
//	if err != nil {
//	    return err
//	}
//	if err := rootfs.CopyInto("/usr/bin/curl", dst, nil); err != nil {
//	    return err
//	}
package rootfs
