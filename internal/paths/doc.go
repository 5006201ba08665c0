// Provides platform-appropriate paths for the image builder.
//
// Cache locations follow XDG conventions on Linux. The tool name "acipack" is
// used as the subdirectory under each base path.
package paths
