package shared

import (
	"fmt"
	"runtime"
)

const unknown = "unknown"

// Set through -ldflags "-X github.com/DeBankDeFi/tahani/pkg/shared.gitVersion=..."
var (
	gitVersion   = unknown
	gitCommit    = unknown
	gitBranch    = unknown
	gitTreeState = unknown
	buildTime    = unknown
)

var appInfo = Info{
	AppName: unknown,
	Version: Version{
		GitVersion:   gitVersion,
		GitCommit:    gitCommit,
		GitBranch:    gitBranch,
		GitTreeState: gitTreeState,
		BuildTime:    buildTime,
		GoVersion:    runtime.Version(),
		Compiler:     runtime.Compiler,
		Platform:     fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	},
}
