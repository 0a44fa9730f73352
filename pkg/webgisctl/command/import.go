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
	"strings"
	"sync"

	"github.com/webgis/webgis/pkg/errgroup"
	"github.com/webgis/webgis/pkg/gis"
	"github.com/webgis/webgis/pkg/gis/importer"

	"github.com/nuclio/errors"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

type importCommandeer struct {
	cmd            *cobra.Command
	rootCommandeer *RootCommandeer
	layerName      string
	defaultSRID    int
	concurrency    int
}

func newImportCommandeer(rootCommandeer *RootCommandeer) *importCommandeer {
	commandeer := &importCommandeer{
		rootCommandeer: rootCommandeer,
	}

	cmd := &cobra.Command{
		Use:   "import file [file] ...",
		Short: "Import shapefiles (.shp or zipped) and GeoJSON files as layers",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return errors.New("Import requires at least one file")
			}

			if commandeer.layerName != "" && len(args) > 1 {
				return errors.New("A layer name can only be given when importing a single file")
			}

			if err := rootCommandeer.initializeWithStore(); err != nil {
				return errors.Wrap(err, "Failed to initialize root")
			}

			defer rootCommandeer.closeStore()

			return commandeer.importFiles(cmd, args)
		},
	}

	cmd.Flags().StringVarP(&commandeer.layerName, "name", "n", "", "Layer name (derived from the file name by default)")
	cmd.Flags().IntVar(&commandeer.defaultSRID, "srid", 0, "SRID of files that don't declare a projection (overrides configuration)")
	cmd.Flags().IntVar(&commandeer.concurrency, "concurrency", errgroup.DefaultErrgroupConcurrency, "Number of files imported at once")

	commandeer.cmd = cmd

	return commandeer
}

func (i *importCommandeer) importFiles(cmd *cobra.Command, paths []string) error {
	uploadConfiguration := i.rootCommandeer.configuration.Upload
	if i.defaultSRID > 0 {
		uploadConfiguration.DefaultSRID = i.defaultSRID
	}

	layerImporter, err := importer.NewImporter(i.rootCommandeer.loggerInstance, &uploadConfiguration)
	if err != nil {
		return errors.Wrap(err, "Failed to create importer")
	}

	var outputLock sync.Mutex

	importGroup, importCtx := errgroup.WithContext(cmd.Context(), i.rootCommandeer.loggerInstance, i.concurrency)

	// files landing in the same layer replace it one after another, in argument order
	for _, layerPaths := range i.groupByLayerName(paths) {
		layerPaths := layerPaths

		importGroup.Go(fmt.Sprintf("import %s", strings.Join(layerPaths, ", ")), func() error {
			for _, path := range layerPaths {
				layer, err := layerImporter.ImportFile(importCtx, path, i.layerName)
				if err != nil {
					return err
				}

				numWritten, err := i.rootCommandeer.store.WriteLayer(importCtx, layer)
				if err != nil {
					return errors.Wrapf(err, "Failed to write layer %s", layer.Name)
				}

				outputLock.Lock()
				fmt.Fprintf(cmd.OutOrStdout(), "Layer '%s' imported (%d features)\n", layer.Name, numWritten) // nolint: errcheck
				outputLock.Unlock()
			}

			return nil
		})
	}

	return importGroup.Wait()
}

// groupByLayerName groups paths by the layer they're imported into, keeping argument order. Paths
// without a valid name are grouped alone and fail on import
func (i *importCommandeer) groupByLayerName(paths []string) [][]string {
	resolveLayerName := func(path string, _ int) string {
		if layerName, err := gis.SanitizeLayerName(path); err == nil {
			return layerName
		}

		return path
	}

	pathsByLayerName := lo.GroupBy(paths, func(path string) string {
		return resolveLayerName(path, 0)
	})

	return lo.Map(lo.Uniq(lo.Map(paths, resolveLayerName)), func(layerName string, _ int) []string {
		return pathsByLayerName[layerName]
	})
}
