package strategies

import (
	"github.com/ahrav/scoutval/internal/domain"
)

// Reefscape2025FieldMappings returns the 2025 (REEFSCAPE) mapping between
// official score breakdown metrics and scouting form fields.
func Reefscape2025FieldMappings() []domain.FieldMapping {
	return []domain.FieldMapping{
		{
			OfficialMetric:  "autoMobilityCount",
			OfficialSources: []string{"autoLineRobot1", "autoLineRobot2", "autoLineRobot3"},
			FieldPaths:      []string{"auto_performance.left_starting_zone"},
			Aggregation:     domain.AggregationCountTrue,
		},
		{
			OfficialMetric: "autoCoralCount",
			FieldPaths: []string{
				"auto_performance.coral_scored_L1",
				"auto_performance.coral_scored_L2",
				"auto_performance.coral_scored_L3",
				"auto_performance.coral_scored_L4",
			},
			Aggregation: domain.AggregationSum,
		},
		{
			OfficialMetric: "teleopCoralCount",
			FieldPaths: []string{
				"teleop_performance.coral_scored_L1",
				"teleop_performance.coral_scored_L2",
				"teleop_performance.coral_scored_L3",
				"teleop_performance.coral_scored_L4",
			},
			Aggregation: domain.AggregationSum,
		},
		{
			OfficialMetric: "teleopReef.trough",
			FieldPaths:     []string{"teleop_performance.coral_scored_L1"},
			Aggregation:    domain.AggregationSum,
			ResultPath:     "tba.teleopReef.trough",
		},
		{
			OfficialMetric: "netAlgaeCount",
			FieldPaths: []string{
				"auto_performance.algae_scored_net",
				"teleop_performance.algae_scored_net",
			},
			Aggregation: domain.AggregationSum,
		},
		{
			OfficialMetric: "wallAlgaeCount",
			FieldPaths: []string{
				"auto_performance.algae_scored_processor",
				"teleop_performance.algae_scored_processor",
			},
			Aggregation: domain.AggregationSum,
		},
	}
}
