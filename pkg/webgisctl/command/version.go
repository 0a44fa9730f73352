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

package command

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/v3io/version-go"
)

type versionCommandeer struct {
	cmd            *cobra.Command
	rootCommandeer *RootCommandeer
}

func newVersionCommandeer(rootCommandeer *RootCommandeer) *versionCommandeer {
	commandeer := &versionCommandeer{
		rootCommandeer: rootCommandeer,
	}

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Display the version number of webgis",
		RunE: func(cmd *cobra.Command, args []string) error {
			versionInfo := version.Get()

			fmt.Fprintf(cmd.OutOrStdout(), "Label: %s\nGit commit: %s\nOS: %s\nArch: %s\nGo version: %s\n", // nolint: errcheck
				versionInfo.Label,
				versionInfo.GitCommit,
				versionInfo.OS,
				versionInfo.Arch,
				versionInfo.GoVersion)

			return nil
		},
	}

	commandeer.cmd = cmd

	return commandeer
}
