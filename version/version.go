package version

import (
	"fmt"
	"path/filepath"
	"runtime"
)

var (
	// URL is the git URL for the repository
	URL = "github.com/nb-coin/new-bitcoin"
	// GitRef is the gitref, as in refs/heads/branchname
	GitRef = "refs/heads/main"
	// GitCommit is the commit hash of the current HEAD, set by the linker
	GitCommit = ""
	// BuildTime stores the time when the current binary was built, set by the linker
	BuildTime = ""
	// Tag lists the Tag on the build
	Tag = "v0.0.1"
	// PathBase is the source root of the module as seen by runtime.Caller, used by
	// the logger to shorten code locations
	PathBase = pathBase()
	// Major is the major number from the tag
	Major = 0
	// Minor is the minor number from the tag
	Minor = 0
	// Patch is the patch version number from the tag
	Patch = 1
	// Meta is the extra arbitrary string field from Semver spec
	Meta = ""
	// AppName is the client name announced in the user agent
	AppName = "nbc"
)

// pathBase returns the parent of the directory holding this file.
func pathBase() string {
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		return ""
	}
	return filepath.Dir(filepath.Dir(file)) + "/"
}

// Number returns the dotted version number without the leading v.
func Number() string {
	return fmt.Sprintf("%d.%d.%d", Major, Minor, Patch)
}

// UserAgent returns the user agent announced in version messages, in the form
// /nbc:0.0.1(newbitcoin)/
func UserAgent(coinName string) string {
	return fmt.Sprintf("/%s:%s(%s)/", AppName, Number(), coinName)
}

// Get returns a pretty printed version information string
func Get() string {
	return fmt.Sprint(
		"\nRepository Information\n"+
			"\tGit repository: "+URL+"\n",
		"\tBranch: "+GitRef+"\n"+
			"\tCommit: "+GitCommit+"\n"+
			"\tBuilt: "+BuildTime+"\n"+
			"\tTag: "+Tag+"\n",
		"\tMajor:", Major, "\n",
		"\tMinor:", Minor, "\n",
		"\tPatch:", Patch, "\n",
		"\tMeta: ", Meta, "\n",
	)
}
