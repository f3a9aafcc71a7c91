package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	app "github.com/turtacn/TripMatch/internal/application/clustering"
	"github.com/turtacn/TripMatch/pkg/errors"
)

type predictOptions struct {
	id              string
	destination     string
	spontaneous     string
	departureTiming string
}

type predictOutput struct {
	*app.AssignResult
}

func (o predictOutput) TableHeaders() []string {
	return []string{"GROUP", "TIER", "DISTANCE", "MODEL"}
}

func (o predictOutput) TableRows() [][]string {
	return [][]string{{string(o.Label), string(o.Tier), fmt.Sprint(o.Distance), o.Version}}
}

func (o predictOutput) String() string {
	return fmt.Sprintf("Group %s (%s match, distance %d, model %s)\n", o.Label, o.Tier, o.Distance, o.Version)
}

// NewPredictCmd creates the predict command.
func NewPredictCmd() *cobra.Command {
	opts := &predictOptions{}
	cmd := &cobra.Command{
		Use:     "predict",
		Short:   "Assign one traveller to a group of the latest model",
		Example: "  tripmatch predict --destination Paris --spontaneous yes --leave-on weekend",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPredict(cmd, opts)
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.destination, "destination", "", "wanted destination")
	f.StringVar(&opts.spontaneous, "spontaneous", "", "whether the traveller is spontaneous")
	f.StringVar(&opts.departureTiming, "leave-on", "", "wanted departure timing")
	f.StringVar(&opts.id, "id", "", "record id; persisted when --online and a member store is configured")
	_ = cmd.MarkFlagRequired("destination")
	_ = cmd.MarkFlagRequired("spontaneous")
	_ = cmd.MarkFlagRequired("leave-on")
	return cmd
}

func runPredict(cmd *cobra.Command, opts *predictOptions) error {
	_, infra, err := openInfrastructure(cmd)
	if err != nil {
		return err
	}
	defer infra.Close()

	svc, err := infra.AssignmentService()
	if err != nil {
		return err
	}
	res, err := svc.Assign(cmd.Context(), app.AssignRequest{
		RecordID:        opts.id,
		Destination:     opts.destination,
		Spontaneous:     opts.spontaneous,
		DepartureTiming: opts.departureTiming,
	})
	if err != nil {
		return err
	}
	if !res.Found {
		return errors.New(errors.ErrCodeNotFound, "no group matches the given preferences")
	}
	return PrintResult(cmd, predictOutput{res})
}

//Personal.AI order the ending
