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

type deleteCommandeer struct {
	cmd            *cobra.Command
	rootCommandeer *RootCommandeer
}

func newDeleteCommandeer(rootCommandeer *RootCommandeer) *deleteCommandeer {
	commandeer := &deleteCommandeer{
		rootCommandeer: rootCommandeer,
	}

	cmd := &cobra.Command{
		Use:     "delete layer [layer] ...",
		Aliases: []string{"del"},
		Short:   "Delete layers",
		RunE: func(cmd *cobra.Command, args []string) error {

			// alert if no arguments were given
			if len(args) == 0 {
				return errors.New("Layer delete requires an identifier")
			}

			if err := rootCommandeer.initializeWithStore(); err != nil {
				return errors.Wrap(err, "Failed to initialize root")
			}

			defer rootCommandeer.closeStore()

			for _, layerName := range args {
				if err := rootCommandeer.store.DeleteLayer(cmd.Context(), layerName); err != nil {
					return errors.Wrapf(err, "Failed to delete layer %s", layerName)
				}

				fmt.Fprintf(cmd.OutOrStdout(), "Layer '%s' deleted\n", layerName) // nolint: errcheck
			}

			return nil
		},
	}

	commandeer.cmd = cmd

	return commandeer
}
