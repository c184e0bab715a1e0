// Package assets bundles files the binaries need at runtime.
package assets

import _ "embed"

// SampleName is the file name the warmup sample is written under.
const SampleName = "sample.pdf"

// SamplePDF is a one-page digital resume used for the startup warmup run.
//
//go:embed sample.pdf
var SamplePDF []byte
