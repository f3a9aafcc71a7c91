package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	app "github.com/turtacn/TripMatch/internal/application/clustering"
)

type modelOutput struct {
	*app.ModelSummary
}

func (o modelOutput) TableHeaders() []string {
	return []string{"GROUP", "SIZE", "DESTINATION", "SPONTANEOUS", "LEAVE ON"}
}

func (o modelOutput) TableRows() [][]string {
	rows := make([][]string, 0, len(o.Groups))
	for _, g := range o.Groups {
		rows = append(rows, []string{
			string(g.Label), strconv.Itoa(g.Size),
			g.Vector.Destination(), g.Vector.Spontaneous(), g.Vector.DepartureTiming(),
		})
	}
	return rows
}

func (o modelOutput) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Model %s, trained %s\n", o.Version, o.TrainedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(&b, "%d groups over %d records, seed %d, silhouette %.4f\n\n", o.GroupCount, o.RecordCount, o.Seed, o.Silhouette)
	b.WriteString(FormatTable(o.TableHeaders(), o.TableRows()))
	return b.String()
}

// NewModelCmd creates the model command.
func NewModelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "model",
		Short: "Show the latest model and its group centroids",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, infra, err := openInfrastructure(cmd)
			if err != nil {
				return err
			}
			defer infra.Close()

			svc, err := infra.AssignmentService()
			if err != nil {
				return err
			}
			sum, err := svc.ActiveModel(cmd.Context())
			if err != nil {
				return err
			}
			return PrintResult(cmd, modelOutput{sum})
		},
	}
}

//Personal.AI order the ending
