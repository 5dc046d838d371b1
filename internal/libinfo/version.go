/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package libinfo provides information about the go-sawtooth module linked into the binary.
package libinfo

import (
	"regexp"
	"runtime/debug"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// ModulePath is the path of the go-sawtooth module.
const ModulePath = "github.com/acronis/go-sawtooth"

// PrometheusVersionLabel is a constant label added to all metrics of the module.
const PrometheusVersionLabel = "go_sawtooth_version"

const unknownVersion = "v0.0.0"

var (
	version     string
	versionOnce sync.Once
)

// Version returns the version of the module linked into the running binary.
// "v0.0.0" is returned if the version cannot be determined.
func Version() string {
	versionOnce.Do(func() {
		if buildInfo, ok := debug.ReadBuildInfo(); ok {
			version = moduleVersion(buildInfo, ModulePath)
		}
		if version == "" || version == "(devel)" {
			version = unknownVersion
		}
	})
	return version
}

// PrometheusConstLabels returns the passed labels extended with the module version label.
// The passed map is not modified.
func PrometheusConstLabels(labels prometheus.Labels) prometheus.Labels {
	result := make(prometheus.Labels, len(labels)+1)
	for k, v := range labels {
		result[k] = v
	}
	result[PrometheusVersionLabel] = Version()
	return result
}

// moduleVersion looks for the module among the main module and dependencies of the build.
// Major version suffixes ("/v2") are accepted.
func moduleVersion(buildInfo *debug.BuildInfo, modPath string) string {
	if buildInfo == nil {
		return ""
	}
	re := regexp.MustCompile(`^` + regexp.QuoteMeta(modPath) + `(/v[0-9]+)?$`)
	if re.MatchString(buildInfo.Main.Path) {
		return buildInfo.Main.Version
	}
	for _, dep := range buildInfo.Deps {
		if re.MatchString(dep.Path) {
			return dep.Version
		}
	}
	return ""
}
