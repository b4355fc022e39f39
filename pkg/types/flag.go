// Copyright (c) 2022 DeBank Inc. <admin@debank.com>
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package types

import "time"

// CommonFlag ...
type CommonFlag struct {
	DevelopmentMode bool `type:"bool" shorthand:"d" enable-env:"true" usage:"development mode, log everything" json:"development_mode"`
	Metrics         bool `type:"bool" enable-env:"true" usage:"print store metrics to stderr on exit" json:"metrics"`
}

// StoreFlag selects and configures the store a command works on.
type StoreFlag struct {
	CommonFlag
	Store         string `type:"string" shorthand:"s" enable-env:"true" usage:"store name, a directory for disk engines" json:"store"`
	Engine        string `type:"string" shorthand:"e" enable-env:"true" usage:"storage engine: leveldb, pebble or memdb" json:"engine"`
	Sync          bool   `type:"bool" enable-env:"true" usage:"sync every write to stable storage" json:"sync"`
	ErrorIfExists bool   `type:"bool" usage:"fail if the store already exists" json:"error_if_exists"`
	DontFillCache bool   `type:"bool" usage:"keep point reads out of the block cache" json:"dont_fill_cache"`

	// OpenRetries retries opening a store held by another process.
	OpenRetries uint          `type:"uint" enable-env:"true" usage:"attempts to open a locked store" json:"open_retries"`
	RetryDelay  time.Duration `type:"duration" enable-env:"true" usage:"initial delay between open attempts" json:"retry_delay"`
}

// ScanFlag ...
type ScanFlag struct {
	Start    string `type:"string" usage:"first key to visit, or the last one with --reverse" json:"start"`
	Reverse  bool   `type:"bool" shorthand:"r" usage:"walk keys in descending order" json:"reverse"`
	Limit    int    `type:"int" shorthand:"n" usage:"stop after this many entries, 0 for all" json:"limit"`
	Snapshot bool   `type:"bool" usage:"read through a snapshot taken before the scan" json:"snapshot"`
	KeysOnly bool   `type:"bool" shorthand:"k" usage:"print keys only" json:"keys_only"`
	Hex      bool   `type:"bool" shorthand:"x" usage:"print keys and values hex encoded" json:"hex"`
}

// CopyFlag is the destination of the copy command.
type CopyFlag struct {
	To       string `type:"string" usage:"destination store" json:"to"`
	ToEngine string `type:"string" usage:"destination engine, defaults to the source engine" json:"to_engine"`
}

// LoadFlag ...
type LoadFlag struct {
	BatchSize int `type:"int" usage:"records per write batch, 0 loads everything in one batch" json:"batch_size"`
}
