// #region <editor-fold desc="Preamble">
// Copyright (c) 2022 Teal.Finance contributors
//
// This file is part of Teal.Finance/Garde, a cookie-token authentication guard.
// Teal.Finance/Garde is free software: you can redistribute it
// and/or modify it under the terms of the GNU Lesser General Public License
// either version 3 or any later version, at the licensee’s option.
// SPDX-License-Identifier: LGPL-3.0-or-later
//
// Teal.Finance/Garde is distributed WITHOUT ANY WARRANTY.
// For more details, see the LICENSE file (alongside the source files)
// or online at <https://www.gnu.org/licenses/lgpl-3.0.html>
// #endregion </editor-fold>

package garde

import (
	"time"

	"github.com/carlmjohnson/versioninfo"
)

// V is set at build time:
//
//	go build -ldflags="-X 'github.com/teal-finance/garde.V=v1.2.3'" ./cmd/garde
//
//nolint:gochecknoglobals // set at build time
var V string

// Version returns "program-version", the version being V
// or the VCS info embedded by the Go toolchain.
func Version(program string) string {
	version := V
	if version == "" {
		version = versioninfo.Short()
		if version == "" {
			version = "undefined-version"
		}
	}

	if program == "" {
		return version
	}
	if len(version) > 1 && version[0] == 'v' {
		version = version[1:]
	}
	return program + "-" + version
}

// LogVersion logs the version and the age of the last commit.
func LogVersion(program string) {
	log.Info("Version:", Version(program))
	if !versioninfo.LastCommit.IsZero() {
		log.Infof("LastCommit: %s (%v ago)",
			versioninfo.LastCommit.Format("2006-01-02 15:04:05"),
			time.Since(versioninfo.LastCommit).Round(time.Minute))
	}
}
