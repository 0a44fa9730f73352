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

	"github.com/nuclio/errors"
	"github.com/spf13/cobra"
)

type bufferCommandeer struct {
	cmd            *cobra.Command
	rootCommandeer *RootCommandeer
	distance       float64
}

func newBufferCommandeer(rootCommandeer *RootCommandeer) *bufferCommandeer {
	commandeer := &bufferCommandeer{
		rootCommandeer: rootCommandeer,
	}

	cmd := &cobra.Command{
		Use:   "buffer layer",
		Short: "Create a layer buffering every feature of a layer by a distance in meters",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return errors.New("Buffer requires a layer name")
			}

			if !cmd.Flags().Changed("distance") {
				return errors.New("Buffer requires a distance")
			}

			if err := rootCommandeer.initializeWithStore(); err != nil {
				return errors.Wrap(err, "Failed to initialize root")
			}

			defer rootCommandeer.closeStore()

			bufferLayerName, err := rootCommandeer.store.CreateBuffer(cmd.Context(), args[0], commandeer.distance)
			if err != nil {
				return errors.Wrapf(err, "Failed to buffer layer %s", args[0])
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Buffer created as '%s'\n", bufferLayerName) // nolint: errcheck

			return nil
		},
	}

	cmd.Flags().Float64VarP(&commandeer.distance, "distance", "d", 0, "Buffer distance in meters")

	commandeer.cmd = cmd

	return commandeer
}
