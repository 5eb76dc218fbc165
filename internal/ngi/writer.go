// This file is part of ngaro - https://github.com/db47h/ngaro
//
// Copyright 2016 Denis Bernard <db047h@gmail.com>
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package ngi holds small helpers shared by the cmd/pc1211 CLI, carried over
// from ngaro's own internal package of the same name.
package ngi

import (
	"io"

	"github.com/pkg/errors"
)

// ErrWriter wraps an io.Writer and remembers the first write error under
// Cause (named to match how cmd/pc1211 already recovers failures via
// errors.Cause), so a run of --dump writes can go unchecked until the end.
// Construct it as a struct literal: &ErrWriter{W: w}.
type ErrWriter struct {
	W     io.Writer
	Cause error
}

func (w *ErrWriter) Write(p []byte) (n int, err error) {
	if w.Cause != nil {
		return 0, w.Cause
	}
	n, err = w.W.Write(p)
	if err != nil {
		w.Cause = errors.Wrap(err, "write failed")
	}
	return n, w.Cause
}
