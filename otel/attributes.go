package otel

import (
	"go.opentelemetry.io/otel/attribute"
)

const (
	AttrTopic           = attribute.Key("messaging.destination.name")
	AttrPartition       = attribute.Key("messaging.destination.partition.id")
	AttrComponent       = attribute.Key("transit.component")
	AttrPollStatus      = attribute.Key("transit.poll.status")
	AttrProcessStatus   = attribute.Key("transit.process.status")
	AttrProduceStatus   = attribute.Key("transit.produce.status")
	AttrProvisionStatus = attribute.Key("transit.provision.status")
	AttrResourceKind    = attribute.Key("transit.resource.kind")
	AttrErrorAction     = attribute.Key("transit.error.action")
	AttrErrorPhase      = attribute.Key("transit.error.phase")
)

// Status values
const (
	StatusSuccess = "success"
	StatusEmpty   = "empty"
	StatusSkipped = "skipped"
	StatusFailed  = "failed"
	StatusError   = "error"
)

// Provision outcomes
const (
	ProvisionCreated = "created"
	ProvisionExists  = "exists"
	ProvisionFailed  = "failed"
)

// Resource kinds
const (
	ResourceTopic     = "topic"
	ResourceConnector = "connector"
	ResourceQuery     = "query"
	ResourceTable     = "table"
)
