// SPDX-License-Identifier: MIT
//
// Package build exposes the build metadata embedded with linker flags:
//
//	go build -ldflags "-X microtools/pkg/build.buildVersion=0.2.0 \
//	  -X microtools/pkg/build.buildCommit=$(git rev-parse --short HEAD) ..."
//
// Development builds run without them and report "dev"/"unknown".
package build

import (
	"errors"
	"fmt"
)

const (
	DefaultName        = "microtools"
	DefaultDescription = "Clock-divided noise generator and WAV recorder"
)

type ldFlags struct {
	Name        string
	Description string
	Time        string
	Commit      string
	Version     string
}

// String is the one-line version banner.
func (f ldFlags) String() string {
	return fmt.Sprintf("%s %s (commit %s, built %s)", f.Name, f.Version, f.Commit, f.Time)
}

// Package-level variables populated by -ldflags.
var (
	buildName    string
	buildTime    string
	buildCommit  string
	buildVersion string
	buildFlags   = &ldFlags{
		Name:        DefaultName,
		Description: DefaultDescription,
		Time:        "unknown",
		Commit:      "unknown",
		Version:     "dev",
	}
)

// Initialize copies the ldflags values into the build info. Flags that
// were not set keep their defaults and are reported in the returned
// error, so callers can decide whether a development build is acceptable.
func Initialize() error {
	var errs []error
	set := func(dst *string, v, name string) {
		if v == "" {
			errs = append(errs, fmt.Errorf("%s is required", name))
			return
		}
		*dst = v
	}

	set(&buildFlags.Name, buildName, "BuildName")
	set(&buildFlags.Time, buildTime, "BuildTime")
	set(&buildFlags.Commit, buildCommit, "BuildCommit")
	set(&buildFlags.Version, buildVersion, "BuildVersion")

	return errors.Join(errs...)
}

// GetBuildFlags returns the current build information.
func GetBuildFlags() *ldFlags {
	return buildFlags
}
