package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const version = "1.0.0"

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "cogserve",
	Short: "Soil nutrient COG tile and sampling server",
	Long: `cogserve serves soil nutrient rasters stored as Cloud-Optimized GeoTIFF files.

Pick a variable and depth interval, and cogserve fetches the matching COG over
HTTP, renders normalized map overlay tiles, and samples pixel values at clicked
coordinates scaled by each variable's display unit.

Examples:
  # Serve SoilGrids-style COGs from a public bucket
  cogserve serve --data-url https://files.example.org/soilgrids --port 8080

  # Bilinear resampling with global min/max normalization
  cogserve serve --data-url https://files.example.org/soilgrids --resample bilinear --global-norm`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.cogserve.yaml)")
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".cogserve")
	}

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}
