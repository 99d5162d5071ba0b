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

package common

import (
	"strings"
)

// NamespaceSeparator separates the storage namespace from the hierarchical path.
const NamespaceSeparator = "::"

// ParsePath splits a raw drive path into its namespace and sanitized relative
// part. The relative part has repeated slashes collapsed, leading and trailing
// slashes stripped and every ':' replaced with ';'. It may be empty (root).
func ParsePath(raw string) (namespace, rel string, err error) {
	idx := strings.Index(raw, NamespaceSeparator)
	if idx < 0 {
		return "", "", ErrInvalidPath
	}
	namespace = raw[:idx]
	if namespace == "" {
		return "", "", ErrStructure
	}
	rel = strings.ReplaceAll(raw[idx+len(NamespaceSeparator):], ":", ";")
	rel = collapseSlashes(rel)
	rel = strings.Trim(rel, "/")
	return namespace, rel, nil
}

// SanitizePath returns the canonical form "<ns>::<rel>" of a file path.
// Paths whose relative part is empty after sanitization are rejected.
func SanitizePath(raw string) (string, error) {
	ns, rel, err := ParsePath(raw)
	if err != nil {
		return "", err
	}
	if rel == "" {
		return "", ErrInvalidPath
	}
	return ns + NamespaceSeparator + rel, nil
}

func collapseSlashes(s string) string {
	if !strings.Contains(s, "//") {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	prevSlash := false
	for _, r := range s {
		if r == '/' {
			if prevSlash {
				continue
			}
			prevSlash = true
		} else {
			prevSlash = false
		}
		b.WriteRune(r)
	}
	return b.String()
}

// SplitSegments splits a sanitized relative path into its components.
func SplitSegments(rel string) []string {
	if rel == "" {
		return nil
	}
	parts := strings.Split(rel, "/")
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// RootPath returns the canonical path of a namespace root folder.
func RootPath(namespace string) string {
	return namespace + NamespaceSeparator
}

// FolderPath builds a canonical folder path. Folder paths always end with '/'
// except for the namespace root.
func FolderPath(namespace string, segments ...string) string {
	if len(segments) == 0 {
		return RootPath(namespace)
	}
	return namespace + NamespaceSeparator + strings.Join(segments, "/") + "/"
}

// ChildFolderPath appends one segment to a canonical folder path.
func ChildFolderPath(parent, name string) string {
	return parent + name + "/"
}

// ChildFilePath appends a file name to a canonical folder path.
func ChildFilePath(parent, name string) string {
	return parent + name
}

// SplitFilePath splits a canonical file path on its final '/' into the
// containing folder path and the file name. A file directly under the
// namespace root yields "<ns>::" as folder path.
func SplitFilePath(path string) (folderPath, name string) {
	if i := strings.LastIndex(path, "/"); i >= 0 {
		return path[:i+1], path[i+1:]
	}
	if i := strings.Index(path, NamespaceSeparator); i >= 0 {
		return path[:i+len(NamespaceSeparator)], path[i+len(NamespaceSeparator):]
	}
	return "", path
}

// ParentFolderPath returns the canonical path of a folder's parent.
// ok is false for namespace roots and malformed paths.
func ParentFolderPath(folderPath string) (parent string, ok bool) {
	idx := strings.Index(folderPath, NamespaceSeparator)
	if idx < 0 {
		return "", false
	}
	rel := strings.TrimSuffix(folderPath[idx+len(NamespaceSeparator):], "/")
	if rel == "" {
		return "", false
	}
	prefix := folderPath[:idx+len(NamespaceSeparator)]
	if i := strings.LastIndex(rel, "/"); i >= 0 {
		return prefix + rel[:i+1], true
	}
	return prefix, true
}

// NamespaceOf returns the namespace prefix of a canonical path.
func NamespaceOf(path string) string {
	if i := strings.Index(path, NamespaceSeparator); i >= 0 {
		return path[:i]
	}
	return ""
}

// SanitizeName validates a single path segment used by rename operations.
// ':' is replaced with ';' like in full paths; names containing '/' or that
// are empty after trimming are rejected.
func SanitizeName(name string) (string, error) {
	name = strings.TrimSpace(strings.ReplaceAll(name, ":", ";"))
	if name == "" || strings.Contains(name, "/") {
		return "", ErrInvalidPath
	}
	return name, nil
}

// Extension returns the suffix after the last '.' of a file name, or the
// empty string when the name has no dot.
func Extension(name string) string {
	i := strings.LastIndex(name, ".")
	if i < 0 {
		return ""
	}
	return name[i+1:]
}

// ReplacePrefix rewrites path when it starts with oldPrefix.
func ReplacePrefix(path, oldPrefix, newPrefix string) string {
	if !strings.HasPrefix(path, oldPrefix) {
		return path
	}
	return newPrefix + path[len(oldPrefix):]
}
