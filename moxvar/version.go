// Package moxvar provides the version of a build, and helpers shared by
// commands and storage.
package moxvar

import (
	"runtime/debug"
)

// Version is set at runtime from the build info of the main module. For builds
// from a checkout, it is the vcs revision.
var Version = "(devel)"

func init() {
	buildInfo, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	Version = buildInfo.Main.Version
	if Version != "(devel)" {
		return
	}
	var rev, modified string
	for _, s := range buildInfo.Settings {
		switch s.Key {
		case "vcs.revision":
			rev = s.Value
		case "vcs.modified":
			modified = s.Value
		}
	}
	if rev == "" {
		return
	}
	Version = rev
	if modified == "true" {
		Version += "+modifications"
	} else if modified != "false" {
		Version += "+unknown"
	}
}

// UserAgent returns the product token for User-Agent and Reporting-UA fields,
// e.g. "mimeengine/v0.1.0".
func UserAgent(product string) string {
	if Version == "(devel)" || Version == "" {
		return product
	}
	return product + "/" + Version
}
