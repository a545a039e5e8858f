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
	"encoding/json"
	"io"
	"strconv"
	"sync"

	"github.com/gorse-io/pairwise/storage/blob"
	"github.com/juju/errors"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
	"github.com/samber/lo"
)

const (
	MainPrefix       = "main/"
	ValidationPrefix = "validation/main/"

	MainLoss           = MainPrefix + "loss"
	MainAccuracy       = MainPrefix + "accuracy"
	ValidationLoss     = ValidationPrefix + "loss"
	ValidationAccuracy = ValidationPrefix + "accuracy"

	LogName = "log"
)

// Entry summarizes one epoch.
type Entry struct {
	Epoch       int
	Iteration   int
	Metrics     map[string]float64
	ElapsedTime float64
}

// MarshalJSON writes metrics next to epoch, iteration and elapsed_time in a flat object.
func (e Entry) MarshalJSON() ([]byte, error) {
	object := make(map[string]any, len(e.Metrics)+3)
	for name, value := range e.Metrics {
		object[name] = value
	}
	object["epoch"] = e.Epoch
	object["iteration"] = e.Iteration
	object["elapsed_time"] = e.ElapsedTime
	return json.Marshal(object)
}

func (e *Entry) UnmarshalJSON(data []byte) error {
	var object map[string]float64
	if err := json.Unmarshal(data, &object); err != nil {
		return errors.Trace(err)
	}
	e.Epoch = int(object["epoch"])
	e.Iteration = int(object["iteration"])
	e.ElapsedTime = object["elapsed_time"]
	delete(object, "epoch")
	delete(object, "iteration")
	delete(object, "elapsed_time")
	e.Metrics = object
	return nil
}

// LogReport keeps every entry and rewrites the whole log to the output store after each epoch.
type LogReport struct {
	mu      sync.Mutex
	store   blob.Store
	entries []Entry
}

func NewLogReport(store blob.Store) *LogReport {
	return &LogReport{store: store}
}

func (r *LogReport) Append(entry Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
	if r.store == nil {
		return nil
	}
	data, err := json.MarshalIndent(r.entries, "", "    ")
	if err != nil {
		return errors.Trace(err)
	}
	return errors.Annotatef(blob.Put(r.store, LogName, data), "failed to write %s", LogName)
}

func (r *LogReport) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Entry(nil), r.entries...)
}

// PrintColumns are the columns of PrintReport.
var PrintColumns = []string{"epoch", MainLoss, ValidationLoss, MainAccuracy, ValidationAccuracy, "elapsed_time"}

// PrintReport renders entries as a table. Missing metrics are left blank.
func PrintReport(w io.Writer, entries []Entry) error {
	table := tablewriter.NewTable(w, tablewriter.WithHeaderAutoFormat(tw.Off))
	table.Header(lo.ToAnySlice(PrintColumns)...)
	for _, entry := range entries {
		row := []string{strconv.Itoa(entry.Epoch)}
		for _, column := range PrintColumns[1 : len(PrintColumns)-1] {
			if value, ok := entry.Metrics[column]; ok {
				row = append(row, strconv.FormatFloat(value, 'f', 6, 64))
			} else {
				row = append(row, "")
			}
		}
		row = append(row, strconv.FormatFloat(entry.ElapsedTime, 'f', 3, 64))
		if err := table.Append(row); err != nil {
			return errors.Trace(err)
		}
	}
	return errors.Trace(table.Render())
}
