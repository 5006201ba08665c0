// Package archive reads image archives and writes the output image.
//
// Base images are tar archives, optionally compressed with gzip, bzip2, xz,
// or zstd; the compression is detected from the stream's magic bytes.
// [Unpack] extracts one into a root filesystem, keeping modes, numeric
// ownership, timestamps, symlinks, hard links, and device nodes, and refusing
// entries that would land outside the root. Remote archives are downloaded
// once into a cache directory by a [Fetcher] and reused while the server
// reports the same size and no newer modification time.
//
// [WriteFile] packs a build work directory (the manifest file and the rootfs
// tree) into the output archive with numeric ownership, writing to a
// temporary file next to the output and renaming it into place, so a failed
// build never leaves a partial archive behind.
//
// Example usage:
//
//	f := archive.NewFetcher(paths.ImageCache())
//	path, err := f.Fetch(ctx, "https://example.com/base.tar.xz")
//	if err != nil {
//	    return err
//	}
//	if err := archive.UnpackFile(path, rootfs); err != nil {
//	    return err
//	}
//
//	dgst, size, err := archive.WriteFile("app.aci", workdir, archive.Gzip)
package archive
