// Package version carries build information, set with -ldflags:
//
//	go build -ldflags "-X github.com/jackzampolin/vbpl/version.GitRelease=v0.1.0 \
//	  -X github.com/jackzampolin/vbpl/version.GitCommit=$(git rev-parse HEAD)"
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

var (
	GitRelease    = "dev"
	GitCommit     = "unknown"
	GitCommitDate = "unknown"
	GoInfo        = fmt.Sprintf("%s %s/%s", runtime.Version(), runtime.GOOS, runtime.GOARCH)
)

func init() {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	if GitRelease == "dev" && info.Main.Version != "" && info.Main.Version != "(devel)" {
		GitRelease = info.Main.Version
	}
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			if GitCommit == "unknown" {
				GitCommit = s.Value
			}
		case "vcs.time":
			if GitCommitDate == "unknown" {
				GitCommitDate = s.Value
			}
		}
	}
}
