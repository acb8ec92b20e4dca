package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/stanstork/stratum-embed/internal/chunker"
	"github.com/stanstork/stratum-embed/internal/models"
)

var (
	chunkSize    int
	chunkOverlap int
)

var chunkCmd = &cobra.Command{
	Use:   "chunk [file]",
	Short: "Preview how a text would be chunked",
	Long: `Split a text into chunks with the same rules jobs use and print them.

Reads the file when given, otherwise standard input. Nothing is embedded
or stored.

Examples:
  ingest chunk notes.txt --size 500 --overlap 50
  echo "some long text" | ingest chunk`,
	Args: cobra.MaximumNArgs(1),
	RunE: runChunk,
}

func init() {
	chunkCmd.Flags().IntVarP(&chunkSize, "size", "s", models.DefaultChunkSize, "maximum chunk length in characters")
	chunkCmd.Flags().IntVarP(&chunkOverlap, "overlap", "o", models.DefaultChunkOverlap, "characters shared between neighbouring chunks; when omitted, 200 or a fifth of --size if smaller")
}

func runChunk(cmd *cobra.Command, args []string) error {
	if chunkSize <= 0 {
		return errors.New("--size must be positive")
	}
	if chunkOverlap < 0 {
		return errors.New("--overlap must not be negative")
	}

	// Same defaulting as jobs: an omitted overlap scales down with the size.
	params := models.JobParameters{ChunkSize: &chunkSize}
	if cmd.Flags().Changed("overlap") {
		params.ChunkOverlap = &chunkOverlap
	}
	size, overlap := params.Chunking()

	var in io.Reader = cmd.InOrStdin()
	if len(args) == 1 {
		f, err := os.Open(args[0])
		if err != nil {
			return errors.Wrap(err, "open input")
		}
		defer f.Close()
		in = f
	}

	data, err := io.ReadAll(in)
	if err != nil {
		return errors.Wrap(err, "read input")
	}

	out := cmd.OutOrStdout()
	count := 0
	for c := range chunker.Split(string(data), size, overlap) {
		fmt.Fprintf(out, "--- chunk %d [%d:%d]\n%s\n", c.Index+1, c.Start, c.End, c.Text)
		count++
	}
	fmt.Fprintf(out, "%d chunk(s)\n", count)
	return nil
}
