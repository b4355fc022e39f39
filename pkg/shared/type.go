package shared

import (
	"strings"
)

type Info struct {
	Version Version
	AppName string
}

type Version struct {
	GitVersion   string
	GitCommit    string
	GitBranch    string
	GitTreeState string
	BuildTime    string
	GoVersion    string
	Compiler     string
	Platform     string
}

// String renders one "Label: \tvalue" line per field.
func (i Info) String() string {
	rows := [][2]string{
		{"AppName", i.AppName},
		{"GitVersion", i.Version.GitVersion},
		{"GitCommit", i.Version.GitCommit},
		{"GitBranch", i.Version.GitBranch},
		{"GitTreeState", i.Version.GitTreeState},
		{"BuildTime", i.Version.BuildTime},
		{"GoVersion", i.Version.GoVersion},
		{"Compiler", i.Version.Compiler},
		{"Platform", i.Version.Platform},
	}
	lines := make([]string, 0, len(rows))
	for _, r := range rows {
		lines = append(lines, r[0]+": \t"+r[1])
	}
	return strings.Join(lines, "\n")
}
