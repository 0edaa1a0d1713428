// Package telemetry defines sensor rows captured by the topside and
// the sinks they are delivered to.
package telemetry

import (
	"strconv"
	"strings"

	"github.com/golang/protobuf/proto"
	"github.com/pkg/errors"
)

// Header names the columns of a row, timestamp first.
var Header = []string{
	"Time(s)",
	"Humidity(%)",
	"Enclosure Temperature(C)",
	"Leak",
	"Vin(Vrms)",
	"Vout(Vrms)",
	"Current Out(A)",
	"PMBus Temperature(C)",
	"Power Out(W)",
}

// Column indices of a row.
const (
	ColTime = iota
	ColHumidity
	ColEnclosureTemp
	ColLeak
	ColVin
	ColVout
	ColCurrentOut
	ColPMBusTemp
	ColPowerOut
)

// ErrEmptyRow is returned when parsing a row without timestamp.
var ErrEmptyRow = errors.New("empty telemetry row")

// Sink receives rows.
type Sink interface {
	Append(row []string) error
}

// SinkFunc is the func form of Sink.
type SinkFunc func(row []string) error

// Append implements Sink.
func (f SinkFunc) Append(row []string) error {
	return f(row)
}

// MakeRow converts a sensor reply into a row: tabs become field
// separators and the capture time in milliseconds is prepended.
func MakeRow(timeMs int64, reply string) []string {
	line := strconv.FormatInt(timeMs, 10) + "," + strings.Replace(reply, "\t", ",", -1)
	return strings.Split(line, ",")
}

// Sample is a decoded row.
type Sample struct {
	Session        string   `protobuf:"bytes,1,opt,name=session,proto3" json:"session,omitempty"`
	TimeMs         int64    `protobuf:"varint,2,opt,name=time_ms,json=timeMs,proto3" json:"time_ms,omitempty"`
	Humidity       float64  `protobuf:"fixed64,3,opt,name=humidity,proto3" json:"humidity,omitempty"`
	EnclosureTemp  float64  `protobuf:"fixed64,4,opt,name=enclosure_temp,json=enclosureTemp,proto3" json:"enclosure_temp,omitempty"`
	Leak           float64  `protobuf:"fixed64,5,opt,name=leak,proto3" json:"leak,omitempty"`
	Vin            float64  `protobuf:"fixed64,6,opt,name=vin,proto3" json:"vin,omitempty"`
	Vout           float64  `protobuf:"fixed64,7,opt,name=vout,proto3" json:"vout,omitempty"`
	CurrentOut     float64  `protobuf:"fixed64,8,opt,name=current_out,json=currentOut,proto3" json:"current_out,omitempty"`
	PmbusTemp      float64  `protobuf:"fixed64,9,opt,name=pmbus_temp,json=pmbusTemp,proto3" json:"pmbus_temp,omitempty"`
	PowerOut       float64  `protobuf:"fixed64,10,opt,name=power_out,json=powerOut,proto3" json:"power_out,omitempty"`
	Raw            []string `protobuf:"bytes,11,rep,name=raw,proto3" json:"raw,omitempty"`
	MissingColumns int32    `protobuf:"varint,12,opt,name=missing_columns,json=missingColumns,proto3" json:"missing_columns,omitempty"`
}

// ProtoMessage implements proto.Message.
func (m *Sample) ProtoMessage() {}

// Reset implements proto.Message.
func (m *Sample) Reset() { *m = Sample{} }

// String implements proto.Message.
func (m *Sample) String() string { return proto.CompactTextString(m) }

// ParseRow decodes a row. The raw fields are always kept; a column
// that is absent counts in MissingColumns, a column that is not a
// number is an error.
func ParseRow(row []string) (*Sample, error) {
	if len(row) == 0 || row[ColTime] == "" {
		return nil, ErrEmptyRow
	}
	timeMs, err := strconv.ParseInt(strings.TrimSpace(row[ColTime]), 10, 64)
	if err != nil {
		return nil, errors.Wrapf(err, "column %q", Header[ColTime])
	}
	s := &Sample{TimeMs: timeMs, Raw: append([]string(nil), row...)}
	values := []*float64{
		ColHumidity:      &s.Humidity,
		ColEnclosureTemp: &s.EnclosureTemp,
		ColLeak:          &s.Leak,
		ColVin:           &s.Vin,
		ColVout:          &s.Vout,
		ColCurrentOut:    &s.CurrentOut,
		ColPMBusTemp:     &s.PmbusTemp,
		ColPowerOut:      &s.PowerOut,
	}
	for col := ColHumidity; col < len(values); col++ {
		if col >= len(row) {
			s.MissingColumns++
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(row[col]), 64)
		if err != nil {
			return nil, errors.Wrapf(err, "column %q", Header[col])
		}
		*values[col] = v
	}
	return s, nil
}

// Encode serializes a sample.
func Encode(s *Sample) ([]byte, error) {
	return proto.Marshal(s)
}

// Decode parses a serialized sample.
func Decode(data []byte) (*Sample, error) {
	var s Sample
	if err := proto.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return &s, nil
}
