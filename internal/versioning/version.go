package versioning

import (
	"runtime"
)

// APIVersion is the wire version of the HTTP API. Clients pin against this,
// so it only moves on breaking changes.
const APIVersion = "v1"

// Info describes the running build. The build fields are injected by the
// linker; callers pass them through from their package-level variables.
type Info struct {
	Version    string `json:"version"`
	APIVersion string `json:"apiVersion"`
	BuildTime  string `json:"buildTime"`
	GitCommit  string `json:"gitCommit"`
	GoVersion  string `json:"goVersion"`
	Platform   string `json:"platform"`
}

// Get assembles version info for the /version endpoint and startup logs.
func Get(version, buildTime, gitCommit string) Info {
	return Info{
		Version:    version,
		APIVersion: APIVersion,
		BuildTime:  buildTime,
		GitCommit:  gitCommit,
		GoVersion:  runtime.Version(),
		Platform:   runtime.GOOS + "/" + runtime.GOARCH,
	}
}
