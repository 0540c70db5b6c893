// Package buildinfo exposes version data injected at link time, e.g.
//
//	go build -ldflags "-X github.com/dmitrijs2005/bucketvault/internal/buildinfo.buildVersion=v1.2.0"
package buildinfo

import (
	"fmt"
	"io"
)

var (
	buildVersion string
	buildDate    string
	buildCommit  string
)

// Info is the JSON shape returned by the version endpoint.
type Info struct {
	Version string `json:"version"`
	Date    string `json:"buildDate"`
	Commit  string `json:"commit"`
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

// Get returns the current build data with "N/A" for unset values.
func Get() Info {
	return Info{
		Version: orNA(buildVersion),
		Date:    orNA(buildDate),
		Commit:  orNA(buildCommit),
	}
}

// PrintBuildData writes build data in a human readable form.
func PrintBuildData(w io.Writer) {
	i := Get()
	fmt.Fprintf(w, "Build version: %s\n", i.Version)
	fmt.Fprintf(w, "Build date: %s\n", i.Date)
	fmt.Fprintf(w, "Build commit: %s\n", i.Commit)
}
