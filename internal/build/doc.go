// Package build runs a build manifest and packages the result as an image.
//
// A build owns a scratch work directory holding the root filesystem. Steps
// from the manifest run one at a time, in order, against that root through a
// [Session]. Steps that touch the host (mounting /proc, copying the host
// resolv.conf, writing an inventory file) record what they did in the
// session's tracker, and the tracker reverts all of it once the steps are
// done, whether they succeeded or not. Only after a successful run are the
// manifest and the archive written. The work directory is removed in every
// case.
//
// Step kinds form a closed set; each maps to one handler. Handlers that run an
// external tool fail the step on a non-zero exit. Library resolution for the
// copy and extract steps is best effort and only logs when ldd cannot help.
//
// Example usage:
//
//	result, err := build.Run(ctx, build.Options{
//	    Manifest:    "image.json",
//	    Output:      "app.aci",
//	    Compression: archive.Gzip,
//	})
//	if err != nil {
//	    return err
//	}
//	fmt.Println(result.Digest)
package build
