// Copyright 2026 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/juju/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	OptimizerAdam = "adam"
	OptimizerSGD  = "sgd"

	BlobPOSIX = "posix"
	BlobS3    = "s3"
	BlobGCS   = "gcs"
	BlobAzure = "azure"
)

// Config is the configuration for the trainer.
type Config struct {
	Data  DataConfig  `mapstructure:"data"`
	Train TrainConfig `mapstructure:"train"`
	Blob  BlobConfig  `mapstructure:"blob"`
}

// DataConfig describes the bit-packed record files.
type DataConfig struct {
	Dim        int      `mapstructure:"dim" validate:"gt=0"`
	Train      []string `mapstructure:"train"`
	Val        []string `mapstructure:"val"`
	LoaderJobs int      `mapstructure:"loader_jobs" validate:"gt=0"`
	CacheSize  int      `mapstructure:"cache_size" validate:"gte=0"`
}

type TrainConfig struct {
	BatchSize   int     `mapstructure:"batch_size" validate:"gt=0"`
	Epoch       int     `mapstructure:"epoch" validate:"gt=0"`
	GPU         int     `mapstructure:"gpu"`
	LR          float64 `mapstructure:"lr" validate:"gt=0"`
	WeightDecay float64 `mapstructure:"weight_decay" validate:"gte=0"`
	Optimizer   string  `mapstructure:"optimizer" validate:"oneof=adam sgd"`
	Seed        int64   `mapstructure:"seed"`
	Shuffle     bool    `mapstructure:"shuffle"`
	Out         string  `mapstructure:"out" validate:"required"`
	InitFrom    string  `mapstructure:"init_from"`
	MetricsPort int     `mapstructure:"metrics_port" validate:"gte=0,lte=65535"`
}

// BlobConfig selects where record files are read from and where snapshots are written to.
type BlobConfig struct {
	Type  string          `mapstructure:"type" validate:"oneof=posix s3 gcs azure"`
	S3    S3Config        `mapstructure:"s3"`
	GCS   GCSConfig       `mapstructure:"gcs"`
	Azure AzureBlobConfig `mapstructure:"azure"`
}

type S3Config struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	Bucket          string `mapstructure:"bucket"`
	Prefix          string `mapstructure:"prefix"`
	UseSSL          bool   `mapstructure:"use_ssl"`
}

type GCSConfig struct {
	Bucket          string `mapstructure:"bucket"`
	Prefix          string `mapstructure:"prefix"`
	CredentialsFile string `mapstructure:"credentials_file"`
}

type AzureBlobConfig struct {
	ConnectionString string `mapstructure:"connection_string"`
	AccountName      string `mapstructure:"account_name"`
	AccountKey       string `mapstructure:"account_key"`
	Endpoint         string `mapstructure:"endpoint"`
	Container        string `mapstructure:"container"`
	Prefix           string `mapstructure:"prefix"`
}

func GetDefaultConfig() *Config {
	return &Config{
		Data: DataConfig{
			Dim:        8184,
			LoaderJobs: 1,
		},
		Train: TrainConfig{
			BatchSize: 128,
			Epoch:     20,
			GPU:       -1,
			LR:        1e-3,
			Optimizer: OptimizerAdam,
			Shuffle:   true,
			Out:       "results",
		},
		Blob: BlobConfig{
			Type: BlobPOSIX,
		},
	}
}

// Validate checks value ranges and the settings required by the selected blob store.
func (config *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(config); err != nil {
		return errors.Trace(err)
	}
	switch config.Blob.Type {
	case BlobS3:
		if config.Blob.S3.Endpoint == "" || config.Blob.S3.Bucket == "" {
			return errors.NotValidf("blob.s3 requires endpoint and bucket")
		}
	case BlobGCS:
		if config.Blob.GCS.Bucket == "" {
			return errors.NotValidf("blob.gcs requires bucket")
		}
	case BlobAzure:
		if config.Blob.Azure.Container == "" {
			return errors.NotValidf("blob.azure requires container")
		}
	}
	return nil
}

// FlagKeys maps command line flags to configuration keys.
var FlagKeys = map[string]string{
	"dim":          "data.dim",
	"train":        "data.train",
	"val":          "data.val",
	"loaderjob":    "data.loader_jobs",
	"cache-size":   "data.cache_size",
	"batchsize":    "train.batch_size",
	"epoch":        "train.epoch",
	"gpu":          "train.gpu",
	"lr":           "train.lr",
	"weight-decay": "train.weight_decay",
	"optimizer":    "train.optimizer",
	"seed":         "train.seed",
	"shuffle":      "train.shuffle",
	"out":          "train.out",
	"init-from":    "train.init_from",
	"metrics-port": "train.metrics_port",
	"blob":         "blob.type",
}

func setDefault(v *viper.Viper) {
	defaultConfig := GetDefaultConfig()
	// [data]
	v.SetDefault("data.dim", defaultConfig.Data.Dim)
	v.SetDefault("data.train", defaultConfig.Data.Train)
	v.SetDefault("data.val", defaultConfig.Data.Val)
	v.SetDefault("data.loader_jobs", defaultConfig.Data.LoaderJobs)
	v.SetDefault("data.cache_size", defaultConfig.Data.CacheSize)
	// [train]
	v.SetDefault("train.batch_size", defaultConfig.Train.BatchSize)
	v.SetDefault("train.epoch", defaultConfig.Train.Epoch)
	v.SetDefault("train.gpu", defaultConfig.Train.GPU)
	v.SetDefault("train.lr", defaultConfig.Train.LR)
	v.SetDefault("train.weight_decay", defaultConfig.Train.WeightDecay)
	v.SetDefault("train.optimizer", defaultConfig.Train.Optimizer)
	v.SetDefault("train.seed", defaultConfig.Train.Seed)
	v.SetDefault("train.shuffle", defaultConfig.Train.Shuffle)
	v.SetDefault("train.out", defaultConfig.Train.Out)
	v.SetDefault("train.metrics_port", defaultConfig.Train.MetricsPort)
	v.SetDefault("train.init_from", defaultConfig.Train.InitFrom)
	// [blob]
	v.SetDefault("blob.type", defaultConfig.Blob.Type)
	v.SetDefault("blob.s3.endpoint", "")
	v.SetDefault("blob.s3.access_key_id", "")
	v.SetDefault("blob.s3.secret_access_key", "")
	v.SetDefault("blob.s3.bucket", "")
	v.SetDefault("blob.s3.prefix", "")
	v.SetDefault("blob.s3.use_ssl", false)
	v.SetDefault("blob.gcs.bucket", "")
	v.SetDefault("blob.gcs.prefix", "")
	v.SetDefault("blob.gcs.credentials_file", "")
	v.SetDefault("blob.azure.connection_string", "")
	v.SetDefault("blob.azure.account_name", "")
	v.SetDefault("blob.azure.account_key", "")
	v.SetDefault("blob.azure.endpoint", "")
	v.SetDefault("blob.azure.container", "")
	v.SetDefault("blob.azure.prefix", "")
}

// LoadConfig merges defaults, the config file (if path is not empty), PAIRWISE_* environment
// variables and changed command line flags, in increasing order of precedence.
func LoadConfig(path string, flagSet *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefault(v)
	v.SetEnvPrefix("PAIRWISE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Annotatef(err, "failed to read config %s", path)
		}
	}
	if flagSet != nil {
		for name, key := range FlagKeys {
			if flag := flagSet.Lookup(name); flag != nil {
				if err := v.BindPFlag(key, flag); err != nil {
					return nil, errors.Trace(err)
				}
			}
		}
	}

	var conf Config
	if err := v.Unmarshal(&conf, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))); err != nil {
		return nil, errors.Annotate(err, "failed to unmarshal config")
	}
	if err := conf.Validate(); err != nil {
		return nil, errors.Annotate(err, "invalid config")
	}
	return &conf, nil
}
