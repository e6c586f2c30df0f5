// Copyright (C) 2025 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package helpers

import (
	"os"
	"strings"
)

// LookupBoolEnv parses the environment variable envVar as a switch.
// ok is false when the variable is unset, empty, or not a recognized word.
func LookupBoolEnv(envVar string) (value bool, ok bool) {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(envVar))) {
	case "true", "1", "yes", "on", "enable", "enabled":
		return true, true
	case "false", "0", "no", "off", "disable", "disabled":
		return false, true
	default:
		return false, false
	}
}

// GetBoolEnv returns the switch value of envVar, or defaultValue when it
// is unset or unrecognized.
func GetBoolEnv(envVar string, defaultValue bool) bool {
	if v, ok := LookupBoolEnv(envVar); ok {
		return v
	}
	return defaultValue
}
