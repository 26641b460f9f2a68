// Transforming commands for the osm CLI: sample, repartition, compress,
// and generate.
package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/angelini/osm/osm"
)

var samplePercent float64

var sampleCmd = &cobra.Command{
	Use:   "sample <source-dataset> <target-dataset>",
	Short: "Write a sampled copy of a dataset",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		source, err := parseDataset(args[0])
		if err != nil {
			return err
		}
		target, err := parseDataset(args[1])
		if err != nil {
			return err
		}
		return runBatch(cmd, osm.NewSample(source, target, samplePercent))
	},
}

var repartitionCount int

var repartitionCmd = &cobra.Command{
	Use:   "repartition <partition>",
	Short: "Rewrite a partition's objects into evenly sized objects",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		partition, err := parsePartition(args[0])
		if err != nil {
			return err
		}
		return runBatch(cmd, osm.NewRepartition(partition, repartitionCount))
	},
}

var compressCodec string

var compressCmd = &cobra.Command{
	Use:   "compress <partition>",
	Short: "Write compressed new versions of a partition's objects",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		partition, err := parsePartition(args[0])
		if err != nil {
			return err
		}
		return runBatch(cmd, osm.NewCompress(partition, compressCodec))
	},
}

var (
	generateRows   int
	generateFields []string
)

var generateCmd = &cobra.Command{
	Use:   "generate <object>",
	Short: "Write a synthetic object",
	Long: `Write a deterministic synthetic object at the target path. Columns are
declared as name:kind pairs, where kind is int, float, string, or bool.
The record format is taken from the object key's extension.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		target, err := parseObject(args[0])
		if err != nil {
			return err
		}
		fields, err := parseFieldSpecs(generateFields)
		if err != nil {
			return err
		}
		spec := osm.GeneratorSpec{
			Format: target.Format(),
			Rows:   generateRows,
			Fields: fields,
		}
		return runBatch(cmd, osm.NewGenerate(target, spec))
	},
}

func init() {
	sampleCmd.Flags().Float64Var(&samplePercent, "percent", 10, "percentage of records to keep, in (0, 100]")
	repartitionCmd.Flags().IntVar(&repartitionCount, "count", 1, "number of output objects")
	compressCmd.Flags().StringVar(&compressCodec, "codec", "zstd", "compression codec: gzip, zstd, or noop")
	generateCmd.Flags().IntVar(&generateRows, "rows", 1000, "number of rows to generate")
	generateCmd.Flags().StringSliceVar(&generateFields, "field", nil, "generated column as name:kind (repeatable)")
}

// parseFieldSpecs converts name:kind flag values into generator columns.
func parseFieldSpecs(args []string) ([]osm.FieldSpec, error) {
	fields := make([]osm.FieldSpec, 0, len(args))
	for _, arg := range args {
		name, kindName, ok := strings.Cut(arg, ":")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid field %q (want name:kind)", arg)
		}
		var kind osm.FieldKind
		switch kindName {
		case "int":
			kind = osm.FieldInt
		case "float":
			kind = osm.FieldFloat
		case "string":
			kind = osm.FieldString
		case "bool":
			kind = osm.FieldBool
		default:
			return nil, fmt.Errorf("invalid field kind %q (want int, float, string, or bool)", kindName)
		}
		fields = append(fields, osm.FieldSpec{Name: name, Kind: kind})
	}
	return fields, nil
}
