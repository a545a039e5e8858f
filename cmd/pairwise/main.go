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

package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"

	"github.com/gorse-io/pairwise/cmd/version"
	"github.com/gorse-io/pairwise/common/log"
	"github.com/gorse-io/pairwise/config"
	"github.com/gorse-io/pairwise/dataset"
	"github.com/gorse-io/pairwise/model/ranking"
	"github.com/gorse-io/pairwise/storage/blob"
	"github.com/gorse-io/pairwise/trainer"
	"github.com/juju/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

var rootCommand = &cobra.Command{
	Use:   "pairwise",
	Short: "Train a linear pairwise ranking model on bit-packed records.",
	Run: func(cmd *cobra.Command, args []string) {
		flags := cmd.PersistentFlags()
		if showVersion, _ := flags.GetBool("version"); showVersion {
			fmt.Print(version.BuildInfo())
			return
		}

		// setup logger
		debug, _ := flags.GetBool("debug")
		log.SetLogger(flags, debug)
		defer log.CloseLogger()

		// load config
		configPath, _ := flags.GetString("config")
		conf, err := config.LoadConfig(configPath, flags)
		if err != nil {
			log.Logger().Fatal("failed to load config", zap.Error(err))
		}

		// dump weights of a snapshot
		if flags.Changed("dump-from") {
			dumpFrom, _ := flags.GetString("dump-from")
			if err = dump(os.Stdout, conf, dumpFrom); err != nil {
				log.Logger().Fatal("failed to dump snapshot", zap.String("snapshot", dumpFrom), zap.Error(err))
			}
			return
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		entries, err := train(ctx, conf)
		if err != nil {
			log.Logger().Fatal("failed to train", zap.Error(err))
		}
		if err = trainer.PrintReport(os.Stdout, entries); err != nil {
			log.Logger().Fatal("failed to print report", zap.Error(err))
		}
	},
}

var versionCommand = &cobra.Command{
	Use:   "version",
	Short: "Print build information.",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Print(version.BuildInfo())
	},
}

func dump(w io.Writer, conf *config.Config, name string) error {
	store, err := blob.New(conf.Blob, "")
	if err != nil {
		return errors.Trace(err)
	}
	model, err := trainer.LoadSnapshot(store, name)
	if err != nil {
		return errors.Trace(err)
	}
	_, err = fmt.Fprintln(w, model.Export())
	return errors.Trace(err)
}

func train(ctx context.Context, conf *config.Config) ([]trainer.Entry, error) {
	input, err := blob.New(conf.Blob, "")
	if err != nil {
		return nil, errors.Trace(err)
	}
	trainSet, err := loadSplit(ctx, input, conf, conf.Data.Train)
	if err != nil {
		return nil, errors.Annotate(err, "failed to load training split")
	}
	var valSet dataset.Dataset
	if len(conf.Data.Val) > 0 {
		if valSet, err = loadSplit(ctx, input, conf, conf.Data.Val); err != nil {
			return nil, errors.Annotate(err, "failed to load validation split")
		}
	}
	out, err := blob.New(conf.Blob, conf.Train.Out)
	if err != nil {
		return nil, errors.Trace(err)
	}

	if conf.Train.MetricsPort > 0 {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			addr := fmt.Sprintf(":%d", conf.Train.MetricsPort)
			log.Logger().Info("start metrics server", zap.String("address", addr))
			if err := http.ListenAndServe(addr, mux); err != nil {
				log.Logger().Error("metrics server stopped", zap.Error(err))
			}
		}()
	}

	model, err := newModel(input, conf)
	if err != nil {
		return nil, errors.Trace(err)
	}
	t, err := trainer.New(trainer.NewConfig(conf), model, trainSet, valSet, out)
	if err != nil {
		return nil, errors.Trace(err)
	}
	t.SetProgress(os.Stderr)
	return t.Fit(ctx)
}

// newModel initializes the scorer, from train.init_from if it is set.
func newModel(input blob.Store, conf *config.Config) (*ranking.Linear, error) {
	dim := dataset.Per(conf.Data.Dim)
	if conf.Train.InitFrom == "" {
		return ranking.NewLinear(dim, conf.Train.Seed), nil
	}
	model, err := trainer.LoadSnapshot(input, conf.Train.InitFrom)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if model.Dim() != dim {
		return nil, errors.Annotatef(ranking.ErrDimensionMismatch, "%s holds %d weights for records of %d bits",
			conf.Train.InitFrom, model.Dim(), dim)
	}
	log.Logger().Info("initialize model", zap.String("snapshot", conf.Train.InitFrom))
	return model, nil
}

func loadSplit(ctx context.Context, input blob.Store, conf *config.Config, names []string) (dataset.Dataset, error) {
	if len(names) == 0 {
		return nil, errors.NotValidf("empty file list")
	}
	store, err := dataset.LoadBitStore(ctx, input, names, conf.Data.Dim, conf.Data.LoaderJobs)
	if err != nil {
		return nil, errors.Trace(err)
	}
	pairs := dataset.NewPairs(store)
	if conf.Data.CacheSize > 0 {
		return dataset.NewCachedPairs(pairs, conf.Data.CacheSize), nil
	}
	return pairs, nil
}

func addFlags(flags *pflag.FlagSet) {
	defaults := config.GetDefaultConfig()
	log.AddFlags(flags)
	flags.Bool("debug", false, "use debug log mode")
	flags.BoolP("version", "v", false, "print version")
	flags.StringP("config", "c", "", "configuration file path")
	flags.String("dump-from", "", "print the weights of a snapshot and exit")
	flags.Int("dim", defaults.Data.Dim, "number of bits in a record")
	flags.StringSlice("train", nil, "training files")
	flags.StringSlice("val", nil, "validation files")
	flags.IntP("loaderjob", "j", defaults.Data.LoaderJobs, "number of parallel data loading jobs")
	flags.Int("cache-size", defaults.Data.CacheSize, "number of decoded pairs to cache (0 disables the cache)")
	flags.Int("batchsize", defaults.Train.BatchSize, "number of pairs in a minibatch")
	flags.Int("epoch", defaults.Train.Epoch, "number of passes over the training split")
	flags.Int("gpu", defaults.Train.GPU, "GPU id (negative value indicates CPU)")
	flags.Float64("lr", defaults.Train.LR, "learning rate")
	flags.Float64("weight-decay", defaults.Train.WeightDecay, "weight decay")
	flags.String("optimizer", defaults.Train.Optimizer, "optimizer (adam or sgd)")
	flags.Int64("seed", defaults.Train.Seed, "random seed")
	flags.Bool("shuffle", defaults.Train.Shuffle, "shuffle training pairs every epoch")
	flags.String("out", defaults.Train.Out, "output directory or prefix")
	flags.String("init-from", defaults.Train.InitFrom, "initialize weights from a snapshot or a "+trainer.TextSuffix+" weight file")
	flags.Int("metrics-port", defaults.Train.MetricsPort, "port of the prometheus metrics server (0 disables it)")
	flags.String("blob", defaults.Blob.Type, "blob storage (posix, s3, gcs or azure)")
}

func init() {
	addFlags(rootCommand.PersistentFlags())
	rootCommand.AddCommand(versionCommand)
}

func main() {
	if err := rootCommand.Execute(); err != nil {
		log.Logger().Fatal("failed to execute command", zap.Error(err))
	}
}
