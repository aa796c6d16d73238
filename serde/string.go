package serde

import (
	"fmt"
	"unicode/utf8"
)

type stringSerde struct{}

// String treats record bytes as UTF-8 text. Station keys and ksqlDB line
// names travel this way.
func String() Serde[string] {
	return stringSerde{}
}

func (stringSerde) Serialise(_ string, value string) ([]byte, error) {
	return []byte(value), nil
}

func (stringSerde) Deserialise(topic string, data []byte) (string, error) {
	if !utf8.Valid(data) {
		return "", fmt.Errorf("topic %s: invalid utf-8 in %d bytes", topic, len(data))
	}
	return string(data), nil
}
