/*
Copyright 2024 The WebGIS Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package common

import (
	"context"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/nuclio/errors"
)

// IsFile returns true if the object @ path is a file
func IsFile(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular()
}

// FileExists returns true if the file @ path exists
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// RetryUntilSuccessful calls callback every interval for duration until it returns true or ctx is done
func RetryUntilSuccessful(ctx context.Context,
	duration time.Duration,
	interval time.Duration,
	callback func() bool) error {
	deadline := time.Now().Add(duration)

	// while we haven't passed the deadline
	for !time.Now().After(deadline) {

		// if callback returns true, we're done
		if callback() {
			return nil
		}

		select {
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), "Context done while waiting until successful")
		case <-time.After(interval):
		}
	}

	return errors.New("Timed out waiting until successful")
}

// StringSliceContainsStringPrefix returns true if s starts with one of the given prefixes
func StringSliceContainsStringPrefix(prefixes []string, s string) bool {
	for _, prefix := range prefixes {
		if strings.HasPrefix(s, prefix) {
			return true
		}
	}

	return false
}

// RedactURLPassword replaces the password of a URL (e.g. a database DSN) so it can be logged
func RedactURLPassword(rawURL string) string {
	parsedURL, err := url.Parse(rawURL)
	if err != nil || parsedURL.User == nil {
		return rawURL
	}

	if _, hasPassword := parsedURL.User.Password(); !hasPassword {
		return rawURL
	}

	parsedURL.User = url.UserPassword(parsedURL.User.Username(), "redacted")

	return parsedURL.String()
}

// FindFilesByExtension walks root and returns all regular files with the given extension
// (case insensitive), sorted by path
func FindFilesByExtension(root string, extension string) ([]string, error) {
	var foundFiles []string

	err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if entry.Type().IsRegular() && strings.EqualFold(filepath.Ext(path), extension) {
			foundFiles = append(foundFiles, path)
		}

		return nil
	})

	if err != nil {
		return nil, errors.Wrapf(err, "Failed to walk %s", root)
	}

	sort.Strings(foundFiles)

	return foundFiles, nil
}
