// Package wire reads and writes Struct message fields for the
// hand-written gRPC surfaces. Ledger amounts travel as decimal strings
// because Struct numbers are float64 and cannot carry a full uint64.
package wire

import (
	"fmt"
	"strconv"

	"google.golang.org/protobuf/types/known/structpb"
)

// Empty returns an empty Struct message.
func Empty() *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{}}
}

// Message builds a Struct message from field values. It panics on value
// kinds structpb cannot represent, which is a programming error in the
// caller, never wire input.
func Message(fields map[string]any) *structpb.Struct {
	msg, err := structpb.NewStruct(fields)
	if err != nil {
		panic(fmt.Sprintf("wire: build message: %v", err))
	}
	return msg
}

// String reads a string field. Absent fields read as empty.
func String(msg *structpb.Struct, field string) string {
	if msg == nil {
		return ""
	}
	value, ok := msg.Fields[field]
	if !ok {
		return ""
	}
	return value.GetStringValue()
}

// Bool reads a bool field. Absent fields read as false.
func Bool(msg *structpb.Struct, field string) bool {
	if msg == nil {
		return false
	}
	value, ok := msg.Fields[field]
	if !ok {
		return false
	}
	return value.GetBoolValue()
}

// Number reads a numeric field as an int. Absent fields read as zero.
func Number(msg *structpb.Struct, field string) int {
	if msg == nil {
		return 0
	}
	value, ok := msg.Fields[field]
	if !ok {
		return 0
	}
	return int(value.GetNumberValue())
}

// Amount parses a base-unit amount field sent as a decimal string.
func Amount(msg *structpb.Struct, field string) (uint64, error) {
	raw := String(msg, field)
	if raw == "" {
		return 0, fmt.Errorf("amount field %s is required", field)
	}
	amount, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("amount field %s: %w", field, err)
	}
	return amount, nil
}

// FormatAmount renders a base-unit amount as its wire representation.
func FormatAmount(amount uint64) string {
	return strconv.FormatUint(amount, 10)
}

// List reads a list field's Struct elements. Absent fields read as nil.
func List(msg *structpb.Struct, field string) []*structpb.Struct {
	if msg == nil {
		return nil
	}
	value, ok := msg.Fields[field]
	if !ok {
		return nil
	}
	listValue := value.GetListValue()
	if listValue == nil {
		return nil
	}
	out := make([]*structpb.Struct, 0, len(listValue.Values))
	for _, element := range listValue.Values {
		if nested := element.GetStructValue(); nested != nil {
			out = append(out, nested)
		}
	}
	return out
}

// StructList wraps Struct elements as a list value for a Message field.
func StructList(elements []*structpb.Struct) *structpb.ListValue {
	values := make([]*structpb.Value, 0, len(elements))
	for _, element := range elements {
		values = append(values, structpb.NewStructValue(element))
	}
	return &structpb.ListValue{Values: values}
}
