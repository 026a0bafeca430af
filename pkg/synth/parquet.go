// ABOUTME: Parquet export of synthesized I/Q blocks
// ABOUTME: One row per pair, generation parameters kept as key/value metadata
package synth

import (
	"fmt"
	"io"

	"github.com/segmentio/parquet-go"
)

// Pair is a single I/Q sample row
type Pair struct {
	I float32 `parquet:"I"`
	Q float32 `parquet:"Q"`
}

// ExportParquet writes interleaved samples as parquet rows.
// Returns the number of rows written.
func ExportParquet(w io.Writer, samples []float32, meta map[string]string) (int, error) {
	opts := make([]parquet.WriterOption, 0, len(meta))
	for k, v := range meta {
		opts = append(opts, parquet.KeyValueMetadata(k, v))
	}

	writer := parquet.NewGenericWriter[Pair](w, opts...)

	rows := make([]Pair, len(samples)/2)
	for i := range rows {
		rows[i] = Pair{I: samples[2*i], Q: samples[2*i+1]}
	}

	n, err := writer.Write(rows)
	if err != nil {
		writer.Close()
		return n, fmt.Errorf("write rows: %w", err)
	}

	if err := writer.Close(); err != nil {
		return n, fmt.Errorf("close parquet writer: %w", err)
	}

	return n, nil
}
