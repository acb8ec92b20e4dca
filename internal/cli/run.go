package cli

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/stanstork/stratum-embed/internal/app"
)

var runCmd = &cobra.Command{
	Use:   "run <job-id>",
	Short: "Process one pending embedding job",
	Long: `Process one pending embedding job to completion.

The job moves through processing to completed or failed, exactly as when
it is submitted over HTTP. The command exits non-zero when the job fails.

Examples:
  ingest run 6f1c2a9e-3b1d-4c55-9d0e-8a4f2b7c1e10`,
	Args: cobra.ExactArgs(1),
	RunE: runJob,
}

func runJob(cmd *cobra.Command, args []string) error {
	jobID := args[0]

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	core, err := app.New(cmd.Context(), cfg, logger)
	if err != nil {
		return errors.Wrap(err, "initialize pipeline")
	}
	defer core.Close()

	result, err := core.Orchestrator.Process(cmd.Context(), jobID)
	if err != nil {
		return errors.Wrapf(err, "job %s", jobID)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s\n", result.Message)
	fmt.Fprintf(out, "  rows:       %d\n", deref(result.RowsProcessed))
	fmt.Fprintf(out, "  chunks:     %d\n", deref(result.ChunksCreated))
	fmt.Fprintf(out, "  embeddings: %d\n", deref(result.EmbeddingsStored))
	return nil
}

func deref(n *int) int {
	if n == nil {
		return 0
	}
	return *n
}
