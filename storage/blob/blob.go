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

package blob

import (
	"io"
	"path"
	"strings"

	"github.com/gorse-io/pairwise/config"
	"github.com/juju/errors"
)

// Store reads record files and writes snapshots. Names are slash separated and relative to the
// store's root.
type Store interface {
	// Open a blob for reading.
	Open(name string) (io.ReadCloser, error)
	// Create a blob for writing. The done channel is closed once the content is persisted. Closing
	// the writer waits for persistence and returns its error.
	Create(name string) (io.WriteCloser, chan struct{}, error)
	List() ([]string, error)
	Remove(name string) error
}

// New creates the store selected by cfg. The prefix is appended to the backend's own prefix (or
// used as the directory of the POSIX store).
func New(cfg config.BlobConfig, prefix string) (Store, error) {
	switch cfg.Type {
	case config.BlobPOSIX, "":
		return NewPOSIX(prefix), nil
	case config.BlobS3:
		s3Config := cfg.S3
		s3Config.Prefix = joinPrefix(s3Config.Prefix, prefix)
		return NewS3(s3Config)
	case config.BlobGCS:
		gcsConfig := cfg.GCS
		gcsConfig.Prefix = joinPrefix(gcsConfig.Prefix, prefix)
		return NewGCS(gcsConfig)
	case config.BlobAzure:
		return NewAzureBlob(cfg.Azure, cfg.Azure.Container, joinPrefix(cfg.Azure.Prefix, prefix))
	default:
		return nil, errors.NotSupportedf("blob store %s", cfg.Type)
	}
}

// Put writes data to a blob and waits until it is persisted.
func Put(store Store, name string, data []byte) error {
	w, _, err := store.Create(name)
	if err != nil {
		return errors.Trace(err)
	}
	if _, err = w.Write(data); err != nil {
		_ = w.Close()
		return errors.Trace(err)
	}
	return errors.Trace(w.Close())
}

// Get reads a whole blob.
func Get(store Store, name string) ([]byte, error) {
	r, err := store.Open(name)
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	return data, errors.Trace(err)
}

func joinPrefix(prefix, name string) string {
	return strings.TrimPrefix(path.Join(prefix, name), "/")
}

// uploadWriter feeds a background upload through a pipe.
type uploadWriter struct {
	*io.PipeWriter
	done chan struct{}
	err  error
}

// newUploadWriter starts upload in the background. The upload must consume the reader until EOF or
// fail.
func newUploadWriter(upload func(r io.Reader) error) *uploadWriter {
	pr, pw := io.Pipe()
	w := &uploadWriter{PipeWriter: pw, done: make(chan struct{})}
	go func() {
		defer close(w.done)
		w.err = upload(pr)
		_ = pr.CloseWithError(w.err)
	}()
	return w
}

func (w *uploadWriter) Close() error {
	if err := w.PipeWriter.Close(); err != nil {
		return err
	}
	<-w.done
	return w.err
}
