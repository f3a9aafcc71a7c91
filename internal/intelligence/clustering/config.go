// Package clustering turns a table of preference vectors into a balanced,
// densely labeled Partition and its CentroidTable.
//
// Training runs through the states Unpartitioned, InitiallyPartitioned,
// Balancing, Verified, LabelsNormalized and Trained. Runs are reproducible
// only when TrainConfig.Seed is fixed; with Seed == 0 a time-based seed is
// drawn and reported in TrainResult.Seed.
package clustering

import (
	"fmt"

	"github.com/turtacn/TripMatch/pkg/errors"
)

// Defaults.
const (
	DefaultTargetInitialGroups    = 200
	DefaultMaxGroupSize           = 60
	DefaultBalanceIterationBudget = 50
	DefaultAdditionalSplitRounds  = 5
	DefaultMinGroupSize           = 10
	DefaultInitRestarts           = 20
	DefaultSplitRestarts          = 5
	DefaultMaxRounds              = 100
	DefaultSilhouetteSample       = 2000

	// NoAdditionalSplitRounds disables the split rounds after balancing. Any
	// negative AdditionalSplitRounds does the same.
	NoAdditionalSplitRounds = -1

	// splitFactor biases splits toward more, smaller sub-groups.
	splitFactor = 0.75
)

// TrainConfig holds every knob of a training run.
type TrainConfig struct {
	TargetInitialGroups    int   `mapstructure:"target_initial_groups" json:"target_initial_groups"`
	MaxGroupSize           int   `mapstructure:"max_group_size" json:"max_group_size"`
	BalanceIterationBudget int   `mapstructure:"balance_iteration_budget" json:"balance_iteration_budget"`
	AdditionalSplitRounds  int   `mapstructure:"additional_split_rounds" json:"additional_split_rounds"`
	MinGroupSize           int   `mapstructure:"min_group_size" json:"min_group_size"`
	InitRestarts           int   `mapstructure:"init_restarts" json:"init_restarts"`
	SplitRestarts          int   `mapstructure:"split_restarts" json:"split_restarts"`
	MaxRounds              int   `mapstructure:"max_rounds" json:"max_rounds"`
	Seed                   int64 `mapstructure:"seed" json:"seed"`
	SilhouetteSample       int   `mapstructure:"silhouette_sample" json:"silhouette_sample"`
}

// DefaultTrainConfig returns the stock configuration.
func DefaultTrainConfig() TrainConfig {
	return TrainConfig{
		TargetInitialGroups:    DefaultTargetInitialGroups,
		MaxGroupSize:           DefaultMaxGroupSize,
		BalanceIterationBudget: DefaultBalanceIterationBudget,
		AdditionalSplitRounds:  DefaultAdditionalSplitRounds,
		MinGroupSize:           DefaultMinGroupSize,
		InitRestarts:           DefaultInitRestarts,
		SplitRestarts:          DefaultSplitRestarts,
		MaxRounds:              DefaultMaxRounds,
		SilhouetteSample:       DefaultSilhouetteSample,
	}
}

// ApplyDefaults fills zero-valued fields. Seed keeps zero, which selects a
// time-based seed; use NoAdditionalSplitRounds to turn the extra split
// rounds off.
func (c *TrainConfig) ApplyDefaults() {
	d := DefaultTrainConfig()
	if c.AdditionalSplitRounds == 0 {
		c.AdditionalSplitRounds = d.AdditionalSplitRounds
	}
	if c.TargetInitialGroups == 0 {
		c.TargetInitialGroups = d.TargetInitialGroups
	}
	if c.MaxGroupSize == 0 {
		c.MaxGroupSize = d.MaxGroupSize
	}
	if c.BalanceIterationBudget == 0 {
		c.BalanceIterationBudget = d.BalanceIterationBudget
	}
	if c.MinGroupSize == 0 {
		c.MinGroupSize = d.MinGroupSize
	}
	if c.InitRestarts == 0 {
		c.InitRestarts = d.InitRestarts
	}
	if c.SplitRestarts == 0 {
		c.SplitRestarts = d.SplitRestarts
	}
	if c.MaxRounds == 0 {
		c.MaxRounds = d.MaxRounds
	}
	if c.SilhouetteSample == 0 {
		c.SilhouetteSample = d.SilhouetteSample
	}
}

// Validate checks ranges and the size band.
func (c TrainConfig) Validate() error {
	var problems []string
	for _, p := range []struct {
		name  string
		value int
	}{
		{"target_initial_groups", c.TargetInitialGroups},
		{"max_group_size", c.MaxGroupSize},
		{"balance_iteration_budget", c.BalanceIterationBudget},
		{"min_group_size", c.MinGroupSize},
		{"init_restarts", c.InitRestarts},
		{"split_restarts", c.SplitRestarts},
		{"max_rounds", c.MaxRounds},
	} {
		if p.value < 1 {
			problems = append(problems, fmt.Sprintf("%s must be positive, got %d", p.name, p.value))
		}
	}
	if c.MinGroupSize > c.MaxGroupSize {
		problems = append(problems, fmt.Sprintf("min_group_size %d exceeds max_group_size %d", c.MinGroupSize, c.MaxGroupSize))
	}
	if len(problems) > 0 {
		return errors.New(errors.ErrCodeInvalidTrainConfig, "invalid training configuration").
			WithDetail(fmt.Sprint(problems))
	}
	return nil
}

//Personal.AI order the ending
