package serde

type Serde[T any] interface {
	Serialiser[T]
	Deserialiser[T]
}

type Serialiser[T any] interface {
	Serialise(topic string, value T) ([]byte, error)
}

type Deserialiser[T any] interface {
	Deserialise(topic string, data []byte) (T, error)
}

// Part identifies which half of a record a serde operated on.
type Part string

const (
	PartKey   Part = "key"
	PartValue Part = "value"
)
