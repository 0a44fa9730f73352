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

package gis

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/nuclio/errors"
)

// ErrUnknownProjection is returned when a .prj cannot be mapped to an EPSG code
var ErrUnknownProjection = errors.New("Unknown projection")

// WGS84PRJ is the .prj content describing EPSG:4326
const WGS84PRJ = `GEOGCS["GCS_WGS_1984",DATUM["D_WGS_1984",SPHEROID["WGS_1984",6378137.0,298.257223563]],` +
	`PRIMEM["Greenwich",0.0],UNIT["Degree",0.0174532925199433]]`

var (
	wktHeaderPattern = regexp.MustCompile(`^\s*(PROJCS|GEOGCS|PROJCRS|GEOGCRS|GEODCRS)\s*\[\s*"([^"]*)"`)
	authorityPattern = regexp.MustCompile(`^(?:AUTHORITY|ID)\s*\[\s*"EPSG"\s*,\s*"?(\d+)"?`)
	utmZonePattern   = regexp.MustCompile(`utm_zone_(\d{1,2})([ns])$`)
)

// names of geographic coordinate systems as written by ESRI and OGC tools
var geographicNames = map[string]int{
	"gcs_wgs_1984":            4326,
	"wgs_84":                  4326,
	"wgs_1984":                4326,
	"wgs84":                   4326,
	"gcs_north_american_1983": 4269,
	"nad83":                   4269,
	"gcs_indian_1975":         4240,
	"indian_1975":             4240,
	"gcs_wgs_1972":            4322,
	"gcs_north_american_1927": 4267,
	"gcs_etrs_1989":           4258,
	"gcs_gda_1994":            4283,
	"gcs_jgd_2000":            4612,
	"gcs_china_geodetic_2000": 4490,
	"gcs_european_1950":       4230,
}

var projectedNames = map[string]int{
	"wgs_1984_web_mercator_auxiliary_sphere": 3857,
	"wgs_84_pseudo_mercator":                 3857,
	"pseudo_mercator":                        3857,
	"popular_visualisation_pseudo_mercator":  3857,
	"wgs_1984_web_mercator":                  3857,
	"british_national_grid":                  27700,
	"etrs_1989_laea":                         3035,
}

// SRIDFromPRJ resolves the EPSG code of the coordinate system described by a .prj WKT
func SRIDFromPRJ(wkt string) (int, error) {
	wkt = strings.TrimSpace(strings.TrimPrefix(wkt, "\ufeff"))

	header := wktHeaderPattern.FindStringSubmatch(wkt)
	if header == nil {
		return 0, errors.Wrap(ErrUnknownProjection, "Unrecognized WKT")
	}

	// an explicit authority on the root element wins
	if srid, found := rootAuthority(wkt); found {
		return srid, nil
	}

	name := normalizeCRSName(header[2])

	switch header[1] {
	case "GEOGCS", "GEOGCRS", "GEODCRS":
		if srid, found := geographicNames[name]; found {
			return srid, nil
		}

	default:
		if srid, found := projectedSRIDByName(name); found {
			return srid, nil
		}
	}

	return 0, errors.Wrapf(ErrUnknownProjection, "Unknown coordinate system %q", header[2])
}

func projectedSRIDByName(name string) (int, bool) {
	if srid, found := projectedNames[name]; found {
		return srid, true
	}

	match := utmZonePattern.FindStringSubmatch(name)
	if match == nil {
		return 0, false
	}

	zone, _ := strconv.Atoi(match[1])
	if zone < 1 || zone > 60 {
		return 0, false
	}

	north := match[2] == "n"
	datum := strings.TrimSuffix(name, match[0])

	switch strings.Trim(datum, "_") {
	case "wgs_1984", "wgs_84", "wgs84":
		if north {
			return 32600 + zone, true
		}

		return 32700 + zone, true

	case "nad_1983", "nad83":
		if north && zone >= 1 && zone <= 23 {
			return 26900 + zone, true
		}

	case "indian_1975":
		if north && (zone == 47 || zone == 48) {
			return 24000 + zone, true
		}
	}

	return 0, false
}

// rootAuthority returns the EPSG authority that is a direct child of the root element
func rootAuthority(wkt string) (int, bool) {
	depth := 0
	srid := 0
	found := false

	for index := 0; index < len(wkt); index++ {
		switch wkt[index] {
		case '[', '(':
			depth++
		case ']', ')':
			depth--
		case '"':

			// skip quoted names, they may contain brackets
			if closing := strings.IndexByte(wkt[index+1:], '"'); closing >= 0 {
				index += closing + 1
			}
		case ',':
			if depth != 1 {
				continue
			}

			match := authorityPattern.FindStringSubmatch(strings.TrimSpace(wkt[index+1:]))
			if match != nil {
				srid, _ = strconv.Atoi(match[1])
				found = true
			}
		}
	}

	return srid, found && srid > 0
}

func normalizeCRSName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	name = strings.NewReplacer(" ", "_", "-", "_", "/", "_").Replace(name)

	for strings.Contains(name, "__") {
		name = strings.ReplaceAll(name, "__", "_")
	}

	// "WGS 84 / UTM zone 47N" normalizes to "wgs_84_utm_zone_47n"
	return name
}
