package consumer

import (
	"github.com/hugolhafner/go-transit/kafka"
)

// ComputeAssignment pairs every partition with the start policy. It does not
// modify partitions.
func ComputeAssignment(partitions []kafka.TopicPartition, policy kafka.OffsetReset) kafka.AssignmentPlan {
	plan := kafka.AssignmentPlan{Partitions: make([]kafka.PartitionStart, len(partitions))}
	for i, tp := range partitions {
		plan.Partitions[i] = kafka.PartitionStart{TopicPartition: tp, Reset: policy}
	}
	return plan
}
