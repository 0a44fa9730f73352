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
	"strconv"

	"github.com/webgis/webgis/pkg/renderer"
	"github.com/webgis/webgis/pkg/store"

	"github.com/nuclio/errors"
	"github.com/spf13/cobra"
)

type getCommandeer struct {
	cmd            *cobra.Command
	rootCommandeer *RootCommandeer
	output         string
}

func newGetCommandeer(rootCommandeer *RootCommandeer) *getCommandeer {
	commandeer := &getCommandeer{
		rootCommandeer: rootCommandeer,
	}

	cmd := &cobra.Command{
		Use:   "get",
		Short: "Display resource information",
	}

	cmd.PersistentFlags().StringVarP(&commandeer.output, "output", "o", renderer.OutputFormatText, "Output format - \"text\", \"json\", or \"yaml\"")

	cmd.AddCommand(
		newGetLayerCommandeer(commandeer).cmd,
		newGetAttributesCommandeer(commandeer).cmd,
	)

	commandeer.cmd = cmd

	return commandeer
}

type getLayerCommandeer struct {
	*getCommandeer
}

func newGetLayerCommandeer(getCommandeer *getCommandeer) *getLayerCommandeer {
	commandeer := &getLayerCommandeer{
		getCommandeer: getCommandeer,
	}

	cmd := &cobra.Command{
		Use:     "layer",
		Aliases: []string{"layers", "la"},
		Short:   "Display layers",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := getCommandeer.rootCommandeer.initializeWithStore(); err != nil {
				return errors.Wrap(err, "Failed to initialize root")
			}

			defer getCommandeer.rootCommandeer.closeStore()

			layers, err := getCommandeer.rootCommandeer.store.ListLayers(cmd.Context())
			if err != nil {
				return errors.Wrap(err, "Failed to list layers")
			}

			return commandeer.renderLayers(cmd, layers)
		},
	}

	commandeer.cmd = cmd

	return commandeer
}

func (g *getLayerCommandeer) renderLayers(cmd *cobra.Command, layers []store.LayerInfo) error {
	var layerRecords [][]string

	for _, layer := range layers {
		layerRecords = append(layerRecords, []string{
			layer.Name,
			layer.GeometryType,
			strconv.Itoa(layer.SRID),
		})
	}

	return renderer.NewRenderer(cmd.OutOrStdout()).Render(g.output,
		[]string{"Name", "Geometry Type", "SRID"},
		layerRecords,
		layers)
}

type getAttributesCommandeer struct {
	*getCommandeer
	limit int
}

func newGetAttributesCommandeer(getCommandeer *getCommandeer) *getAttributesCommandeer {
	commandeer := &getAttributesCommandeer{
		getCommandeer: getCommandeer,
	}

	cmd := &cobra.Command{
		Use:     "attributes layer",
		Aliases: []string{"attrs"},
		Short:   "Display the attribute table of a layer",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return errors.New("Get attributes requires a layer name")
			}

			if err := getCommandeer.rootCommandeer.initializeWithStore(); err != nil {
				return errors.Wrap(err, "Failed to initialize root")
			}

			defer getCommandeer.rootCommandeer.closeStore()

			attributeTable, err := getCommandeer.rootCommandeer.store.GetLayerAttributes(cmd.Context(),
				args[0],
				commandeer.limit)
			if err != nil {
				return errors.Wrapf(err, "Failed to get attributes of %s", args[0])
			}

			return commandeer.renderAttributes(cmd, attributeTable)
		},
	}

	cmd.Flags().IntVar(&commandeer.limit, "limit", store.DefaultAttributesLimit, "Maximum number of rows")

	commandeer.cmd = cmd

	return commandeer
}

func (g *getAttributesCommandeer) renderAttributes(cmd *cobra.Command, attributeTable *store.AttributeTable) error {
	var rowRecords [][]string

	for _, row := range attributeTable.Data {
		var rowRecord []string
		for _, header := range attributeTable.Headers {
			value, found := row[header]
			if !found || value == nil {
				rowRecord = append(rowRecord, "")
				continue
			}

			rowRecord = append(rowRecord, fmt.Sprint(value))
		}

		rowRecords = append(rowRecords, rowRecord)
	}

	return renderer.NewRenderer(cmd.OutOrStdout()).Render(g.output,
		attributeTable.Headers,
		rowRecords,
		attributeTable)
}
