// Shared helpers for osm CLI commands: path parsing, backend construction,
// and batch execution.
package main

import (
	"context"
	"fmt"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/angelini/osm/osm"
	s3store "github.com/angelini/osm/osm/s3"
)

// parsePath splits a slash-separated argument into its namespace path.
// Depth selects the scope: bucket/dataset, bucket/dataset/partition, or
// bucket/dataset/partition/key.
func parsePath(arg string) (osm.Path, error) {
	parts := strings.Split(strings.Trim(arg, "/"), "/")
	for _, part := range parts {
		if part == "" {
			return nil, fmt.Errorf("%w: %q", osm.ErrInvalidPath, arg)
		}
	}
	switch len(parts) {
	case 2:
		return osm.DatasetPath{Bucket: parts[0], Name: parts[1]}, nil
	case 3:
		return osm.DatasetPath{Bucket: parts[0], Name: parts[1]}.Partition(parts[2]), nil
	case 4:
		return osm.DatasetPath{Bucket: parts[0], Name: parts[1]}.Partition(parts[2]).Object(parts[3]), nil
	default:
		return nil, fmt.Errorf("%w: %q (want bucket/dataset[/partition[/key]])", osm.ErrInvalidPath, arg)
	}
}

func parseDataset(arg string) (osm.DatasetPath, error) {
	path, err := parsePath(arg)
	if err != nil {
		return osm.DatasetPath{}, err
	}
	dataset, ok := path.(osm.DatasetPath)
	if !ok {
		return osm.DatasetPath{}, fmt.Errorf("%w: %q is not a dataset path", osm.ErrInvalidPath, arg)
	}
	return dataset, nil
}

func parsePartition(arg string) (osm.PartitionPath, error) {
	path, err := parsePath(arg)
	if err != nil {
		return osm.PartitionPath{}, err
	}
	partition, ok := path.(osm.PartitionPath)
	if !ok {
		return osm.PartitionPath{}, fmt.Errorf("%w: %q is not a partition path", osm.ErrInvalidPath, arg)
	}
	return partition, nil
}

func parseObject(arg string) (osm.ObjectPath, error) {
	path, err := parsePath(arg)
	if err != nil {
		return osm.ObjectPath{}, err
	}
	object, ok := path.(osm.ObjectPath)
	if !ok {
		return osm.ObjectPath{}, fmt.Errorf("%w: %q is not an object path", osm.ErrInvalidPath, arg)
	}
	return object, nil
}

// newStore builds the configured storage backend.
func newStore(ctx context.Context, v *viper.Viper) (osm.Store, error) {
	switch backend := v.GetString(cfgKeyBackend); backend {
	case "fs":
		root := v.GetString(cfgKeyRoot)
		if root == "" {
			return nil, fmt.Errorf("fs backend requires --root")
		}
		return osm.NewFSStore(root)
	case "memory":
		return osm.NewMemoryStore(), nil
	case "s3":
		bucket := v.GetString(cfgKeyBucket)
		if bucket == "" {
			return nil, fmt.Errorf("s3 backend requires --bucket")
		}

		var loadOpts []func(*awsconfig.LoadOptions) error
		if region := v.GetString(cfgKeyRegion); region != "" {
			loadOpts = append(loadOpts, awsconfig.WithRegion(region))
		}
		if accessKey := v.GetString(cfgKeyAccessKey); accessKey != "" {
			loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
				credentials.NewStaticCredentialsProvider(accessKey, v.GetString(cfgKeySecretKey), "")))
		}
		cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}

		client := awss3.NewFromConfig(cfg, func(o *awss3.Options) {
			// MinIO and LocalStack need an explicit endpoint and path-style
			// addressing.
			if endpoint := v.GetString(cfgKeyEndpoint); endpoint != "" {
				o.BaseEndpoint = &endpoint
				o.UsePathStyle = true
			}
		})
		return s3store.New(client, s3store.Config{
			Bucket: bucket,
			Prefix: v.GetString(cfgKeyPrefix),
		})
	default:
		return nil, fmt.Errorf("unknown backend %q (want fs, memory, or s3)", backend)
	}
}

// runBatch resolves, plans, and executes one batch of jobs, printing the
// report. The process exits non-zero when any action failed.
func runBatch(cmd *cobra.Command, jobs ...osm.Job) error {
	ctx := cmd.Context()

	v, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	store, err := newStore(ctx, v)
	if err != nil {
		return err
	}

	runtime := osm.NewRuntime(store,
		osm.WithWorkers(v.GetInt(cfgKeyWorkers)),
		osm.WithActionTimeout(v.GetDuration(cfgKeyTimeout)))

	report, err := runtime.Run(ctx, osm.NewState(), jobs)
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), report)
	return report.Err()
}
