// SPDX-License-Identifier: MIT
package build

import (
	"os"
	"strings"
	"testing"
)

var (
	origName    string
	origTime    string
	origCommit  string
	origVersion string
	origFlags   ldFlags
)

func TestMain(m *testing.M) {
	origName = buildName
	origTime = buildTime
	origCommit = buildCommit
	origVersion = buildVersion
	origFlags = *buildFlags

	exitCode := m.Run()

	buildName = origName
	buildTime = origTime
	buildCommit = origCommit
	buildVersion = origVersion
	*buildFlags = origFlags

	os.Exit(exitCode)
}

func defaults() *ldFlags {
	return &ldFlags{
		Name:        DefaultName,
		Description: DefaultDescription,
		Time:        "unknown",
		Commit:      "unknown",
		Version:     "dev",
	}
}

func TestInitialize(t *testing.T) {
	tests := []struct {
		name        string
		buildName   string
		buildTime   string
		buildCommit string
		buildVer    string
		wantErrMsg  []string
		want        ldFlags
	}{
		{
			"Missing BuildName",
			"", "2025-04-13", "abcdef123", "v1.0.0",
			[]string{"BuildName is required"},
			ldFlags{DefaultName, DefaultDescription, "2025-04-13", "abcdef123", "v1.0.0"},
		},
		{
			"Missing BuildCommit",
			"testapp", "2025-04-13", "", "v1.0.0",
			[]string{"BuildCommit is required"},
			ldFlags{"testapp", DefaultDescription, "2025-04-13", "unknown", "v1.0.0"},
		},
		{
			"Development Build",
			"", "", "", "",
			[]string{"BuildName", "BuildTime", "BuildCommit", "BuildVersion"},
			ldFlags{DefaultName, DefaultDescription, "unknown", "unknown", "dev"},
		},
		{
			"Success Case",
			"testapp", "2025-04-13", "abcdef123", "v1.0.0",
			nil,
			ldFlags{"testapp", DefaultDescription, "2025-04-13", "abcdef123", "v1.0.0"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buildFlags = defaults()
			buildName = tt.buildName
			buildTime = tt.buildTime
			buildCommit = tt.buildCommit
			buildVersion = tt.buildVer

			err := Initialize()

			if len(tt.wantErrMsg) == 0 && err != nil {
				t.Errorf("Initialize() unexpected error: %v", err)
			}
			if len(tt.wantErrMsg) > 0 && err == nil {
				t.Errorf("Initialize() expected error, got nil")
			}
			for _, msg := range tt.wantErrMsg {
				if err != nil && !strings.Contains(err.Error(), msg) {
					t.Errorf("Initialize() error = %v, want mention of %s", err, msg)
				}
			}

			if *buildFlags != tt.want {
				t.Errorf("buildFlags = %+v, want %+v", *buildFlags, tt.want)
			}
		})
	}
}

func TestGetBuildFlags(t *testing.T) {
	expected := ldFlags{
		Name:    "testapp",
		Time:    "2025-04-13",
		Commit:  "abcdef123",
		Version: "v1.0.0",
	}
	buildFlags = &expected

	flags := GetBuildFlags()
	if *flags != expected {
		t.Errorf("GetBuildFlags() = %+v, want %+v", flags, expected)
	}
	if got := flags.String(); got != "testapp v1.0.0 (commit abcdef123, built 2025-04-13)" {
		t.Errorf("String() = %q", got)
	}
}
