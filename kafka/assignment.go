package kafka

// OffsetReset decides where a freshly assigned partition starts reading.
type OffsetReset int

const (
	// ResumeCommitted leaves the offset unset so the group's committed
	// offset (or the client's auto reset policy) applies.
	ResumeCommitted OffsetReset = iota
	ResetEarliest
	ResetLatest
)

func (o OffsetReset) String() string {
	switch o {
	case ResumeCommitted:
		return "committed"
	case ResetEarliest:
		return "earliest"
	case ResetLatest:
		return "latest"
	default:
		return "unknown"
	}
}

// PartitionStart pairs a partition with its starting position.
type PartitionStart struct {
	TopicPartition
	Reset OffsetReset
}

// AssignmentPlan is the full set of partitions to apply after a rebalance.
// A new plan supersedes the previous one.
type AssignmentPlan struct {
	Partitions []PartitionStart
}

// Explicit returns the partitions whose offset must be set before consuming.
func (p AssignmentPlan) Explicit() []PartitionStart {
	var out []PartitionStart
	for _, ps := range p.Partitions {
		if ps.Reset != ResumeCommitted {
			out = append(out, ps)
		}
	}
	return out
}

func (p AssignmentPlan) TopicPartitions() []TopicPartition {
	out := make([]TopicPartition, len(p.Partitions))
	for i, ps := range p.Partitions {
		out[i] = ps.TopicPartition
	}
	return out
}
