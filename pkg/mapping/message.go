package mapping

import "ulp/pkg/typelattice"

// MessageKind tags the variant of a Message, the pool payload described in
// spec §3.
type MessageKind int

const (
	MessageTask MessageKind = iota
	MessageShipIndexMapping
	MessageShipData
	MessageDebug
)

// Message is the tagged union every worker in the pool consumes, per
// spec §3/§4.5. Only the fields matching Kind are meaningful.
type Message struct {
	Kind MessageKind

	// MessageTask
	Task Task

	// MessageShipIndexMapping
	IndexName string
	IndexType typelattice.Type

	// MessageShipData
	ShipMapping    *Store
	ShipParsedPath string
	ShipParserKind string

	// MessageDebug
	DebugN int64
}

func NewTaskMessage(t Task) Message {
	return Message{Kind: MessageTask, Task: t}
}

func NewShipIndexMappingMessage(indexName string, t typelattice.Type) Message {
	return Message{Kind: MessageShipIndexMapping, IndexName: indexName, IndexType: t}
}

func NewShipDataMessage(store *Store, parsedPath, parserKind string) Message {
	return Message{Kind: MessageShipData, ShipMapping: store, ShipParsedPath: parsedPath, ShipParserKind: parserKind}
}

func NewDebugMessage(n int64) Message {
	return Message{Kind: MessageDebug, DebugN: n}
}
