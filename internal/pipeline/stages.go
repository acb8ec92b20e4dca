package pipeline

import (
	"fmt"
	"strings"

	"github.com/stanstork/stratum-embed/internal/chunker"
	"github.com/stanstork/stratum-embed/internal/models"
	"github.com/stanstork/stratum-embed/internal/source"
)

const rowProgressInterval = 100

// projection selects which result-set columns are flattened, in order.
type projection struct {
	names   []string
	indexes []int
}

// projectColumns restricts the result set to the selected columns, matched by
// name without regard to case. Unknown names are dropped; when nothing
// matches, every column is used.
func projectColumns(columns, selected []string) projection {
	all := projection{names: columns, indexes: make([]int, len(columns))}
	for i := range columns {
		all.indexes[i] = i
	}
	if len(selected) == 0 {
		return all
	}

	byName := make(map[string]int, len(columns))
	for i, c := range columns {
		key := strings.ToLower(c)
		if _, seen := byName[key]; !seen {
			byName[key] = i
		}
	}

	var p projection
	for _, s := range selected {
		if i, ok := byName[strings.ToLower(strings.TrimSpace(s))]; ok {
			p.names = append(p.names, columns[i])
			p.indexes = append(p.indexes, i)
		}
	}
	if len(p.indexes) == 0 {
		return all
	}
	return p
}

// flattenRows renders every row to text. Rows keep their position, so an
// all-NULL row yields "".
func flattenRows(rs *source.ResultSet, p projection) []string {
	texts := make([]string, len(rs.Rows))
	values := make([]any, len(p.indexes))
	for r, row := range rs.Rows {
		for i, idx := range p.indexes {
			if idx < len(row) {
				values[i] = row[idx]
			} else {
				values[i] = nil
			}
		}
		texts[r] = chunker.FlattenRow(p.names, values)
	}
	return texts
}

// rowChunk is a chunk with its provenance.
type rowChunk struct {
	RowIndex   int
	ChunkIndex int
	Text       string
	Preview    string
}

// chunkRows splits every non-blank row text and keeps global order. onRows
// is called with the number of rows done every 100 rows and after the last row.
func chunkRows(texts []string, size, overlap int, onRows func(done int) error) ([]rowChunk, error) {
	var out []rowChunk
	for r, text := range texts {
		if strings.TrimSpace(text) != "" {
			preview := chunker.Preview(text, 0)
			for c := range chunker.Split(text, size, overlap) {
				out = append(out, rowChunk{RowIndex: r, ChunkIndex: c.Index, Text: c.Text, Preview: preview})
			}
		}

		done := r + 1
		if done%rowProgressInterval == 0 || done == len(texts) {
			if err := onRows(done); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

// buildRecords pairs chunks with their vectors. The embedder guarantees one
// vector per chunk, so a mismatch is a bug.
func buildRecords(job *models.EmbeddingJob, model *models.EmbeddingModel, columns []string, chunks []rowChunk, vectors [][]float32) []models.EmbeddingRecord {
	if len(chunks) != len(vectors) {
		panic(fmt.Sprintf("pipeline: %d chunks but %d vectors", len(chunks), len(vectors)))
	}

	p := job.Parameters
	records := make([]models.EmbeddingRecord, len(chunks))
	for i, c := range chunks {
		records[i] = models.EmbeddingRecord{
			Name:        recordName(p.Name, c.RowIndex, c.ChunkIndex),
			Description: p.Description,
			SourceType:  models.SourceTypeDatabaseQuery,
			SourceID:    p.ConnectionID,
			ModelID:     model.ID,
			Embedding:   vectors[i],
			Content:     c.Text,
			Metadata: models.ChunkMetadata{
				JobID:         job.ID,
				RowIndex:      c.RowIndex,
				ChunkIndex:    c.ChunkIndex,
				SourcePreview: c.Preview,
				Query:         p.Query,
				Schema:        p.Schema,
				Table:         p.Table,
				Columns:       columns,
			},
			UserID: job.UserID,
		}
	}
	return records
}

func recordName(base string, row, chunk int) string {
	if base == "" {
		return fmt.Sprintf("Row %d, Chunk %d", row+1, chunk+1)
	}
	return fmt.Sprintf("%s - Row %d, Chunk %d", base, row+1, chunk+1)
}

func chunkTexts(chunks []rowChunk) []string {
	out := make([]string, len(chunks))
	for i, c := range chunks {
		out[i] = c.Text
	}
	return out
}
