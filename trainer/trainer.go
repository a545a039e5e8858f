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

package trainer

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorse-io/pairwise/common/log"
	"github.com/gorse-io/pairwise/common/nn"
	"github.com/gorse-io/pairwise/config"
	"github.com/gorse-io/pairwise/dataset"
	"github.com/gorse-io/pairwise/model/ranking"
	"github.com/gorse-io/pairwise/storage/blob"
	"github.com/juju/errors"
	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"
)

// Config holds the hyper-parameters of a training run.
type Config struct {
	BatchSize   int
	Epoch       int
	LR          float64
	WeightDecay float64
	Optimizer   string
	Seed        int64
	Shuffle     bool
	LoaderJobs  int
	GPU         int
}

func NewConfig(cfg *config.Config) Config {
	return Config{
		BatchSize:   cfg.Train.BatchSize,
		Epoch:       cfg.Train.Epoch,
		LR:          cfg.Train.LR,
		WeightDecay: cfg.Train.WeightDecay,
		Optimizer:   cfg.Train.Optimizer,
		Seed:        cfg.Train.Seed,
		Shuffle:     cfg.Train.Shuffle,
		LoaderJobs:  cfg.Data.LoaderJobs,
		GPU:         cfg.Train.GPU,
	}
}

func (c Config) newOptimizer(params []*nn.Tensor) (nn.Optimizer, error) {
	var optimizer nn.Optimizer
	switch c.Optimizer {
	case config.OptimizerAdam, "":
		optimizer = nn.NewAdam(params, c.LR)
	case config.OptimizerSGD:
		optimizer = nn.NewSGD(params, c.LR)
	default:
		return nil, errors.NotSupportedf("optimizer %s", c.Optimizer)
	}
	optimizer.SetWeightDecay(c.WeightDecay)
	return optimizer, nil
}

// Trainer fits a linear scorer on pairs, evaluates it after every epoch and writes a snapshot and
// the log report to the output store.
type Trainer struct {
	config   Config
	model    *ranking.Linear
	train    dataset.Dataset
	val      dataset.Dataset
	out      blob.Store
	device   Device
	runId    string
	report   *LogReport
	progress io.Writer
}

// New checks the device and prepares a run. val and out may be nil.
func New(cfg Config, model *ranking.Linear, train, val dataset.Dataset, out blob.Store) (*Trainer, error) {
	device, err := SelectDevice(cfg.GPU)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if cfg.BatchSize <= 0 || cfg.Epoch <= 0 {
		return nil, errors.NotValidf("batch size %d and epoch %d", cfg.BatchSize, cfg.Epoch)
	}
	return &Trainer{
		config: cfg,
		model:  model,
		train:  train,
		val:    val,
		out:    out,
		device: device,
		runId:  uuid.NewString(),
		report: NewLogReport(out),
	}, nil
}

// SetProgress shows a progress bar over training iterations on w.
func (t *Trainer) SetProgress(w io.Writer) {
	t.progress = w
}

func (t *Trainer) Model() *ranking.Linear {
	return t.model
}

// Fit runs all epochs and returns one entry per epoch.
func (t *Trainer) Fit(ctx context.Context) ([]Entry, error) {
	optimizer, err := t.config.newOptimizer(t.model.Parameters())
	if err != nil {
		return nil, errors.Trace(err)
	}
	summary := ranking.NewSummary()
	objective := ranking.NewRankLoss(t.model, ranking.MultiReporter{
		ranking.WithPrefix(MainPrefix, summary),
		ranking.ReporterFunc(func(name string, value float64) {
			BatchMetricVec.WithLabelValues(MainPrefix + name).Set(value)
		}),
	})
	loader := dataset.NewLoader(t.train, t.config.BatchSize, t.config.LoaderJobs, t.config.Shuffle, t.config.Seed)
	logger := log.Logger().With(zap.String("run_id", t.runId))
	logger.Info("start training",
		zap.Int("train_size", t.train.Len()),
		zap.Int("dim", t.train.Dim()),
		zap.Stringer("device", t.device),
		zap.Any("config", t.config))

	start := time.Now()
	iteration := 0
	var bar *progressbar.ProgressBar
	if t.progress != nil {
		bar = progressbar.NewOptions(t.config.Epoch*loader.NumBatches(),
			progressbar.OptionSetWriter(t.progress),
			progressbar.OptionSetDescription("training"),
			progressbar.OptionShowCount(),
			progressbar.OptionThrottle(100*time.Millisecond))
	}
	for epoch := 1; epoch <= t.config.Epoch; epoch++ {
		epochStart := time.Now()
		summary.Reset()
		if err = t.runEpoch(ctx, loader, objective, optimizer, func() {
			iteration++
			IterationTotal.Inc()
			if bar != nil {
				_ = bar.Add(1)
			}
		}); err != nil {
			return t.report.Entries(), errors.Annotatef(err, "epoch %d", epoch)
		}

		entry := Entry{
			Epoch:     epoch,
			Iteration: iteration,
			Metrics:   summary.Means(),
		}
		if t.val != nil {
			loss, accuracy, err := Evaluate(ctx, t.model, t.val, t.config.BatchSize, t.config.LoaderJobs)
			if err != nil {
				return t.report.Entries(), errors.Annotatef(err, "validate epoch %d", epoch)
			}
			entry.Metrics[ValidationLoss] = loss
			entry.Metrics[ValidationAccuracy] = accuracy
		}
		if t.out != nil {
			if err = t.snapshot(epoch); err != nil {
				return t.report.Entries(), errors.Trace(err)
			}
		}
		entry.ElapsedTime = time.Since(start).Seconds()
		if err = t.report.Append(entry); err != nil {
			return t.report.Entries(), errors.Trace(err)
		}

		EpochTotal.Set(float64(epoch))
		EpochSeconds.Set(time.Since(epochStart).Seconds())
		fields := []zap.Field{zap.Int("epoch", epoch), zap.Int("iteration", iteration)}
		for name, value := range entry.Metrics {
			MetricVec.WithLabelValues(name).Set(value)
			fields = append(fields, zap.Float64(name, value))
		}
		logger.Info(fmt.Sprintf("fit linear %v/%v", epoch, t.config.Epoch), fields...)
	}
	if bar != nil {
		_ = bar.Finish()
	}
	logger.Info("complete training", zap.Duration("used_time", time.Since(start)))
	return t.report.Entries(), nil
}

func (t *Trainer) runEpoch(ctx context.Context, loader *dataset.Loader, objective *ranking.RankLoss, optimizer nn.Optimizer, step func()) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	dim := t.train.Dim()
	batches := loader.Epoch(ctx)
	for batch := range batches {
		optimizer.ZeroGrad()
		loss, err := objective.Forward(
			nn.NewTensor(batch.High, batch.Len(), dim),
			nn.NewTensor(batch.Low, batch.Len(), dim),
		)
		if err != nil {
			cancel()
			for range batches {
			}
			return errors.Trace(err)
		}
		loss.Backward()
		optimizer.Step()
		step()
	}
	return errors.Trace(loader.Err())
}

// SnapshotName returns the name of the snapshot taken after epoch.
func SnapshotName(epoch int) string {
	return fmt.Sprintf("model_%d", epoch)
}

func (t *Trainer) snapshot(epoch int) error {
	buf := bytes.NewBuffer(nil)
	if err := t.model.Marshal(buf); err != nil {
		return errors.Trace(err)
	}
	name := SnapshotName(epoch)
	return errors.Annotatef(blob.Put(t.out, name, buf.Bytes()), "failed to write %s", name)
}

// TextSuffix marks weight files in the text format of Linear.Export.
const TextSuffix = ".txt"

// LoadSnapshot restores a scorer from a snapshot in store, or from exported weights if name ends
// with TextSuffix.
func LoadSnapshot(store blob.Store, name string) (*ranking.Linear, error) {
	if strings.HasSuffix(name, TextSuffix) {
		data, err := blob.Get(store, name)
		if err != nil {
			return nil, errors.Annotatef(err, "failed to open %s", name)
		}
		model, err := ranking.ParseLinear(string(data))
		if err != nil {
			return nil, errors.Annotatef(err, "failed to load %s", name)
		}
		return model, nil
	}
	r, err := store.Open(name)
	if err != nil {
		return nil, errors.Annotatef(err, "failed to open %s", name)
	}
	defer r.Close()
	model, err := ranking.UnmarshalLinear(r)
	if err != nil {
		return nil, errors.Annotatef(err, "failed to load %s", name)
	}
	return model, nil
}
