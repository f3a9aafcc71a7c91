package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	app "github.com/turtacn/TripMatch/internal/application/clustering"
	"github.com/turtacn/TripMatch/internal/infrastructure/ingest"
	"github.com/turtacn/TripMatch/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/TripMatch/pkg/errors"
)

type trainOptions struct {
	file string
	out  string
	seed int64
}

// trainOutput renders a TrainingSummary.
type trainOutput struct {
	*app.TrainingSummary
	Output string `json:"output,omitempty"`
}

func (o trainOutput) TableHeaders() []string { return []string{"GROUP", "SIZE", "STATUS"} }

func (o trainOutput) TableRows() [][]string {
	status := make(map[string]string)
	for _, g := range o.Undersized {
		status[string(g.Label)] = "undersized"
	}
	for _, g := range o.Oversized {
		status[string(g.Label)] = "oversized"
	}
	rows := make([][]string, 0, len(o.Distribution))
	for _, g := range o.Distribution {
		s := status[string(g.Label)]
		if s == "" {
			s = "ok"
		}
		rows = append(rows, []string{string(g.Label), strconv.Itoa(g.Size), s})
	}
	return rows
}

func (o trainOutput) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Model %s trained on %d records (%d dropped)\n", o.Version, o.RecordCount, o.Dropped)
	fmt.Fprintf(&b, "Groups:      %d\n", o.GroupCount)
	fmt.Fprintf(&b, "Seed:        %d\n", o.Seed)
	fmt.Fprintf(&b, "Silhouette:  %.4f\n", o.Silhouette)
	fmt.Fprintf(&b, "Converged:   %t after %d balancing iterations\n", o.Converged, o.Iterations)
	if n := len(o.Undersized) + len(o.Oversized); n > 0 {
		fmt.Fprintf(&b, "Out of band: %d groups (%d undersized, %d oversized)\n", n, len(o.Undersized), len(o.Oversized))
	}
	fmt.Fprintf(&b, "Duration:    %s\n", o.Duration)
	b.WriteString("\nGroup sizes:\n")
	b.WriteString(FormatTable(o.TableHeaders(), o.TableRows()))
	if o.Output != "" {
		fmt.Fprintf(&b, "\nClustered table written to %s\n", o.Output)
	}
	return b.String()
}

// NewTrainCmd creates the train command.
func NewTrainCmd() *cobra.Command {
	opts := &trainOptions{}
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train a model from a preference table and publish it",
		Long: "Reads a CSV of traveller preferences, clusters it, stores the model in the\n" +
			"model directory and optionally writes the table with its group labels.",
		Example: "  tripmatch train --file users.csv --out clustered.csv --seed 42",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTrain(cmd, opts)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&opts.file, "file", "f", "", "input CSV (default: clustering.data_file)")
	f.StringVar(&opts.out, "out", "", "write the clustered table to this CSV")
	f.Int64Var(&opts.seed, "seed", 0, "random seed; 0 picks a time-based seed")
	return cmd
}

func runTrain(cmd *cobra.Command, opts *trainOptions) error {
	cliCtx, infra, err := openInfrastructure(cmd)
	if err != nil {
		return err
	}
	defer infra.Close()

	file := opts.file
	if file == "" {
		file = cliCtx.Config.Clustering.DataFile
	}
	if file == "" {
		return errors.New(errors.ErrCodeValidation, "no input file; pass --file or set clustering.data_file")
	}

	svc, err := infra.TrainingService()
	if err != nil {
		return err
	}
	trainOpts := app.TrainOptions{Source: "cli"}
	if cmd.Flags().Changed("seed") {
		seed := opts.seed
		trainOpts.Seed = &seed
	}
	sum, err := svc.TrainFromFile(cmd.Context(), file, trainOpts)
	if err != nil {
		return err
	}

	out := trainOutput{TrainingSummary: sum}
	if opts.out != "" {
		if err := ingest.WriteClusteredFile(opts.out, sum.Table, sum.Partition); err != nil {
			return err
		}
		out.Output = opts.out
		cliCtx.Logger.Info("clustered table written", logging.String("path", opts.out))
	}
	return PrintResult(cmd, out)
}

//Personal.AI order the ending
