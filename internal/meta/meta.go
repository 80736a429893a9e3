// Package meta holds build metadata shared by the library and the CLI.
package meta

// Version is the released version, overridable at build time with
// -ldflags "-X .../internal/meta.Version=v1.2.3".
var Version = "v0.1.0"
