// Package main provides the osm CLI: operator verbs over versioned object
// store namespaces.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// configFile is set by the --config flag.
var configFile string

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "osm",
	Short: "osm manages datasets of versioned objects",
	Long: `osm compiles operator verbs (move, copy, remove, sample, repartition,
compress, generate) into plans of primitive actions and executes them
against a filesystem, memory, or S3 backend. Paths are written as
bucket/dataset, bucket/dataset/partition, or bucket/dataset/partition/key.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default: ~/.osm/config.yaml)")
	rootCmd.PersistentFlags().String("backend", "", "storage backend: fs, memory, or s3")
	rootCmd.PersistentFlags().String("root", "", "root directory for the fs backend")
	rootCmd.PersistentFlags().String("bucket", "", "bucket for the s3 backend")
	rootCmd.PersistentFlags().String("prefix", "", "key prefix for the s3 backend")
	rootCmd.PersistentFlags().Int("workers", 0, "max concurrent actions per layer")
	rootCmd.PersistentFlags().Duration("timeout", 0, "per-action timeout")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(moveCmd)
	rootCmd.AddCommand(copyCmd)
	rootCmd.AddCommand(removeCmd)
	rootCmd.AddCommand(sampleCmd)
	rootCmd.AddCommand(repartitionCmd)
	rootCmd.AddCommand(compressCmd)
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(sizeCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("osm v0.1.0")
	},
}
