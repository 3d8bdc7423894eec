package handlers

import "net/http"

// VersionResponse is the body for GET /version.
type VersionResponse struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Commit  string `json:"commit,omitempty"`
}

var versionInfo = VersionResponse{Name: "gridrun", Version: "dev"}

// SetVersionInfo installs build-time version metadata.
func SetVersionInfo(version, commit string) {
	if version != "" {
		versionInfo.Version = version
	}
	versionInfo.Commit = commit
}

// VersionHandler serves GET /version.
func VersionHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, versionInfo)
}
