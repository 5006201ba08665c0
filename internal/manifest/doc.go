// Package manifest loads build manifests and decodes their build steps.
//
// A build manifest is a JSON object (comments and trailing commas are
// accepted) that doubles as the image manifest written into the final
// archive. The ordered build step list lives under the reserved key
// [StepsKey]; it is removed before the manifest is persisted. Every other key
// is carried through untouched, except labels, which are merged with the
// host platform defaults so that user values win.
//
// Steps are decoded into a closed set of kinds ([StepKind]) with typed
// parameters, so a malformed step fails at load time before any filesystem
// is touched.
//
// Example usage:
//
//	doc, err := manifest.Load("image.json")
//	if err != nil {
//	    return err
//	}
//	merged, err := manifest.Merge(manifest.Defaults(platforms.DefaultSpec()), doc.Manifest)
//	if err != nil {
//	    return err
//	}
//	for _, step := range doc.Steps {
//	    fmt.Println(step.Kind, step.Name)
//	}
package manifest
