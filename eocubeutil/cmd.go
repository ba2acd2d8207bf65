/*
Copyright © 2025 the eocube authors.
This file is part of eocube.

eocube is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

eocube is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with eocube.  If not, see <http://www.gnu.org/licenses/>.
*/


// Package eocubeutil contains the command-line interface of eocube.
package eocubeutil

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/lnashier/viper"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/eocube"
	"github.com/spatialmodel/eocube/stac"
	"github.com/spatialmodel/eocube/zarr"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Cfg holds configuration information.
var Cfg *viper.Viper

var options []struct {
	name, usage, shorthand string
	defaultVal             interface{}
	flagsets               []*pflag.FlagSet
}

func init() {
	// Options are the configuration options available to eocube.
	options = []struct {
		name, usage, shorthand string
		defaultVal             interface{}
		flagsets               []*pflag.FlagSet
	}{
		{
			name: "config",
			usage: `
              config specifies the configuration file location.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "log-level",
			usage: `
              log-level is the minimum level of log messages: one of
              debug, info, warning or error.`,
			defaultVal: "info",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "catalog-url",
			usage: `
              catalog-url is the root URL of the STAC API searched for
              products.`,
			defaultVal: stac.DefaultURL,
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "data-id",
			usage: `
              data-id is the identifier of the product to open, for
              example sentinel-2-l2a. Run 'eocube list' for the
              available identifiers.`,
			shorthand:  "d",
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{schemaCmd.Flags(), openCmd.Flags(), previewCmd.Flags()},
		},
		{
			name: "bbox",
			usage: `
              bbox is the bounding box of the cube as minx,miny,maxx,maxy
              in the units of crs.`,
			defaultVal: []string{},
			flagsets:   []*pflag.FlagSet{openCmd.Flags(), previewCmd.Flags()},
		},
		{
			name: "time-range",
			usage: `
              time-range holds the first and last date of the cube as
              YYYY-MM-DD or RFC 3339 times.`,
			shorthand:  "t",
			defaultVal: []string{},
			flagsets:   []*pflag.FlagSet{openCmd.Flags(), previewCmd.Flags()},
		},
		{
			name: "crs",
			usage: `
              crs is the coordinate reference system of the cube, e.g.
              EPSG:32632. Scene products default to EPSG:4326.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{openCmd.Flags(), previewCmd.Flags()},
		},
		{
			name: "spatial-res",
			usage: `
              spatial-res is the pixel size of the cube in the units
              of crs.`,
			shorthand:  "r",
			defaultVal: 0.0,
			flagsets:   []*pflag.FlagSet{openCmd.Flags(), previewCmd.Flags()},
		},
		{
			name: "variables",
			usage: `
              variables lists the variables to load. All variables of
              the product are loaded when it is empty.`,
			defaultVal: []string{},
			flagsets:   []*pflag.FlagSet{openCmd.Flags(), previewCmd.Flags()},
		},
		{
			name: "tile-size",
			usage: `
              tile-size is the spatial chunk length used while
              assembling the cube. 0 uses the product default.`,
			defaultVal: 0,
			flagsets:   []*pflag.FlagSet{openCmd.Flags(), previewCmd.Flags()},
		},
		{
			name: "query",
			usage: `
              query holds additional catalog filters as a JSON object,
              e.g. {"eo:cloud_cover": {"lt": 20}}.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{openCmd.Flags(), previewCmd.Flags()},
		},
		{
			name: "spline-orders",
			usage: `
              spline-orders sets the interpolation used when upsampling:
              a single order (0 to 3, or nearest, linear, bilinear or
              cubic) or a JSON object mapping orders to variable names
              or data types.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{openCmd.Flags(), previewCmd.Flags()},
		},
		{
			name: "agg-methods",
			usage: `
              agg-methods sets the aggregation used when downsampling:
              a single method (center, mean, median, mode, min, max,
              first, last) or a JSON object mapping methods to variable
              names or data types.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{openCmd.Flags(), previewCmd.Flags()},
		},
		{
			name: "suppress-warnings",
			usage: `
              suppress-warnings lists warning codes that are not logged.`,
			defaultVal: []string{},
			flagsets:   []*pflag.FlagSet{openCmd.Flags(), previewCmd.Flags()},
		},
		{
			name: "output",
			usage: `
              output is the location of the netCDF file written by
              'open' or the PNG image written by 'preview'. It may be
              a blob storage URL such as gs://bucket/cube.nc.`,
			shorthand:  "o",
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{openCmd.Flags(), previewCmd.Flags()},
		},
		{
			name: "workers",
			usage: `
              workers is the number of chunks computed in parallel.
              0 uses one worker per processor.`,
			defaultVal: 0,
			flagsets:   []*pflag.FlagSet{openCmd.Flags(), previewCmd.Flags()},
		},
		{
			name: "cache-size",
			usage: `
              cache-size is the number of decoded storage chunks kept
              in memory.`,
			defaultVal: 256,
			flagsets:   []*pflag.FlagSet{openCmd.Flags(), previewCmd.Flags()},
		},
		{
			name: "variable",
			usage: `
              variable is the variable drawn by 'preview'. The first
              variable of the cube is drawn when it is empty.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{previewCmd.Flags()},
		},
		{
			name: "time-index",
			usage: `
              time-index is the time step drawn by 'preview'.`,
			defaultVal: 0,
			flagsets:   []*pflag.FlagSet{previewCmd.Flags()},
		},
	}

	Cfg = viper.New()

	// Set the prefix for configuration environment variables.
	Cfg.SetEnvPrefix("EOCUBE")
	Cfg.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	Cfg.AutomaticEnv()

	for _, option := range options {
		for i, set := range option.flagsets {
			if i != 0 { // We don't want to create the same flag twice.
				set.AddFlag(option.flagsets[0].Lookup(option.name))
				continue
			}
			switch option.defaultVal.(type) {
			case string:
				if option.shorthand == "" {
					set.String(option.name, option.defaultVal.(string), option.usage)
				} else {
					set.StringP(option.name, option.shorthand, option.defaultVal.(string), option.usage)
				}
			case []string:
				if option.shorthand == "" {
					set.StringSlice(option.name, option.defaultVal.([]string), option.usage)
				} else {
					set.StringSliceP(option.name, option.shorthand, option.defaultVal.([]string), option.usage)
				}
			case int:
				if option.shorthand == "" {
					set.Int(option.name, option.defaultVal.(int), option.usage)
				} else {
					set.IntP(option.name, option.shorthand, option.defaultVal.(int), option.usage)
				}
			case float64:
				if option.shorthand == "" {
					set.Float64(option.name, option.defaultVal.(float64), option.usage)
				} else {
					set.Float64P(option.name, option.shorthand, option.defaultVal.(float64), option.usage)
				}
			default:
				panic("invalid argument type")
			}
			Cfg.BindPFlag(option.name, set.Lookup(option.name))
		}
	}
}

func init() {
	// Link the commands together.
	Root.AddCommand(versionCmd)
	Root.AddCommand(listCmd)
	Root.AddCommand(schemaCmd)
	Root.AddCommand(openCmd)
	Root.AddCommand(previewCmd)
}

// setConfig finds and reads in the configuration file, if there is one,
// and sets the log level.
func setConfig() error {
	if cfgpath := Cfg.GetString("config"); cfgpath != "" {
		Cfg.SetConfigFile(cfgpath)
		if err := Cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("eocube: problem reading configuration file: %v", err)
		}
	}
	lvl, err := logrus.ParseLevel(Cfg.GetString("log-level"))
	if err != nil {
		return fmt.Errorf("eocube: %v", err)
	}
	logrus.SetLevel(lvl)
	return nil
}

// newStore returns the data store described by the configuration.
var newStore = func() (*eocube.Store, error) {
	url := os.ExpandEnv(Cfg.GetString("catalog-url"))
	if url == "" {
		return nil, fmt.Errorf("eocube: catalog-url must be set")
	}
	return eocube.NewStore(stac.NewClient(url), zarr.NewOpener(Cfg.GetInt("cache-size")), url), nil
}

// Root is the main command.
var Root = &cobra.Command{
	Use:   "eocube",
	Short: "Analysis-ready data cubes from Sentinel Zarr products.",
	Long: `eocube searches a STAC catalog for Sentinel-2 and Sentinel-3 products
stored as Zarr and assembles them into a regular (time, y, x) data cube
on a single grid.

Configuration can be changed by using a configuration file (and providing the
path to the file using the --config flag), by using command-line arguments,
or by setting environment variables in the format 'EOCUBE_VAR' where 'VAR' is the
name of the variable to be set, with dashes replaced by underscores.
Refer to https://github.com/spf13/viper for additional configuration information.`,
	DisableAutoGenTag: true,
	SilenceUsage:      true,
	PersistentPreRunE: func(*cobra.Command, []string) error { return setConfig() },
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  "version prints the version number of this version of eocube.",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "eocube v%s\n", eocube.Version)
	},
	DisableAutoGenTag: true,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the available products",
	Long:  "list prints the identifiers of the products that can be opened.",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newStore()
		if err != nil {
			return err
		}
		for _, id := range s.DataIDs() {
			fmt.Fprintln(cmd.OutOrStdout(), id)
		}
		return nil
	},
	DisableAutoGenTag: true,
}

var schemaCmd = &cobra.Command{
	Use:   "schema [data-id]",
	Short: "Print the open parameters of a product",
	Long: `schema prints, as JSON, the open parameters accepted by a product,
which ones are required and the variables that can be loaded.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newStore()
		if err != nil {
			return err
		}
		sc, err := s.OpenParamsSchema(dataID(args), "")
		if err != nil {
			return err
		}
		e := json.NewEncoder(cmd.OutOrStdout())
		e.SetIndent("", "  ")
		return e.Encode(sc)
	},
	DisableAutoGenTag: true,
}

var openCmd = &cobra.Command{
	Use:   "open [data-id]",
	Short: "Assemble a data cube",
	Long: `open searches the catalog for the requested product, time range and
bounding box, assembles the data cube and writes it to the output
location as a netCDF file.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		output, err := checkOutputFile(Cfg.GetString("output"), ".nc")
		if err != nil {
			return err
		}
		ds, err := openCube(ctx, dataID(args))
		if err != nil {
			return err
		}
		if err := writeOutput(ctx, output, func(f *os.File) error {
			return eocube.Save(ctx, ds, f, Cfg.GetInt("workers"))
		}); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %d time steps of %v to %s\n", len(ds.Times), ds.VarNames(), output)
		return nil
	},
	DisableAutoGenTag: true,
}

var previewCmd = &cobra.Command{
	Use:   "preview [data-id]",
	Short: "Draw one time step of a data cube",
	Long: `preview assembles a data cube like 'open' and draws one variable at
one time step as a PNG heat map.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		output, err := checkOutputFile(Cfg.GetString("output"), ".png")
		if err != nil {
			return err
		}
		ds, err := openCube(ctx, dataID(args))
		if err != nil {
			return err
		}
		return writeOutput(ctx, output, func(f *os.File) error {
			return Preview(ctx, ds, Cfg.GetString("variable"), Cfg.GetInt("time-index"), Cfg.GetInt("workers"), f)
		})
	},
	DisableAutoGenTag: true,
}

// dataID returns the product identifier given as an argument or option.
func dataID(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return Cfg.GetString("data-id")
}
