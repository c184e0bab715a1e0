package assets

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSamplePDFIsEmbedded(t *testing.T) {
	assert.True(t, bytes.HasPrefix(SamplePDF, []byte("%PDF-")))
	assert.Contains(t, string(SamplePDF), "John Doe")
}
