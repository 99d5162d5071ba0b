// Copyright 2024 DriveFS Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package vfs

import (
	"regexp"
	"strings"

	"drivefs/internal/common"
)

const maxUsernameRunes = 32

var (
	usernameStrip = regexp.MustCompile("[/\\\\@:;'\"`]")
	usernameValid = regexp.MustCompile(`^[\p{L}\p{N}]+$`)
)

// SanitizeUsername replaces reserved characters with spaces, keeps the first
// 32 runes and trims surrounding whitespace.
func SanitizeUsername(username string) string {
	s := usernameStrip.ReplaceAllString(username, " ")
	if r := []rune(s); len(r) > maxUsernameRunes {
		s = string(r[:maxUsernameRunes])
	}
	return strings.TrimSpace(s)
}

// ValidUsername reports whether a sanitized username consists only of
// letters and digits.
func ValidUsername(username string) bool {
	return usernameValid.MatchString(username)
}

// CheckUsername sanitizes and validates username.
func CheckUsername(username string) (string, error) {
	name := SanitizeUsername(username)
	if !ValidUsername(name) {
		return "", common.ErrInvalidUsername
	}
	return name, nil
}

// FormatUsername returns the stored "<name>@<owner>" form.
func FormatUsername(name string, owner Identity) string {
	return name + "@" + owner.String()
}

// BareUsername strips the "@<owner>" suffix from a formatted username. Names
// never contain '@', so the first one starts the owner.
func BareUsername(formatted string) string {
	if i := strings.Index(formatted, "@"); i >= 0 {
		return formatted[:i]
	}
	return formatted
}
