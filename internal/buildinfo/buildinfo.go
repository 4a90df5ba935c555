// Package buildinfo holds version data injected at link time, e.g.
//
//	go build -ldflags "-X github.com/dmitrijs2005/gophledger/internal/buildinfo.Version=v1.2.0"
package buildinfo

import (
	"fmt"
	"io"
)

const notAvailable = "N/A"

var (
	Version = notAvailable
	Date    = notAvailable
	Commit  = notAvailable
)

func value(s string) string {
	if s == "" {
		return notAvailable
	}
	return s
}

// PrintBuildData writes the version banner to w.
func PrintBuildData(w io.Writer) {
	fmt.Fprintf(w, "Build version: %s\n", value(Version))
	fmt.Fprintf(w, "Build date: %s\n", value(Date))
	fmt.Fprintf(w, "Build commit: %s\n", value(Commit))
}
