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
	"os"

	"github.com/webgis/webgis/pkg/gis/exporter"

	"github.com/nuclio/errors"
	"github.com/spf13/cobra"
)

type exportCommandeer struct {
	cmd            *cobra.Command
	rootCommandeer *RootCommandeer
	outputPath     string
}

func newExportCommandeer(rootCommandeer *RootCommandeer) *exportCommandeer {
	commandeer := &exportCommandeer{
		rootCommandeer: rootCommandeer,
	}

	cmd := &cobra.Command{
		Use:   "export layer",
		Short: "Export a layer as a zipped shapefile",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return errors.New("Export requires a layer name")
			}

			if err := rootCommandeer.initializeWithStore(); err != nil {
				return errors.Wrap(err, "Failed to initialize root")
			}

			defer rootCommandeer.closeStore()

			return commandeer.export(cmd, args[0])
		},
	}

	cmd.Flags().StringVarP(&commandeer.outputPath, "output", "o", "", "Output path (<layer>_export.zip by default)")

	commandeer.cmd = cmd

	return commandeer
}

func (e *exportCommandeer) export(cmd *cobra.Command, layerName string) error {
	outputPath := e.outputPath
	if outputPath == "" {
		outputPath = exporter.ArchiveFileName(layerName)
	}

	layerExporter, err := exporter.NewExporter(e.rootCommandeer.loggerInstance, &e.rootCommandeer.configuration.Upload)
	if err != nil {
		return errors.Wrap(err, "Failed to create exporter")
	}

	layer, err := e.rootCommandeer.store.ReadLayer(cmd.Context(), layerName)
	if err != nil {
		return errors.Wrapf(err, "Failed to read layer %s", layerName)
	}

	outputFile, err := os.Create(outputPath)
	if err != nil {
		return errors.Wrapf(err, "Failed to create %s", outputPath)
	}

	archive, err := layerExporter.ExportShapefile(cmd.Context(), layer, outputFile)
	if closeErr := outputFile.Close(); err == nil && closeErr != nil {
		err = errors.Wrapf(closeErr, "Failed to close %s", outputPath)
	}

	if err != nil {
		os.Remove(outputPath) // nolint: errcheck
		return errors.Wrapf(err, "Failed to export layer %s", layerName)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Layer '%s' exported to %s (%d features)\n", // nolint: errcheck
		layerName,
		outputPath,
		archive.NumFeatures)

	return nil
}
