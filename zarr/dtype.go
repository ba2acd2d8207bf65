/*
Copyright © 2025 the eocube authors.
This file is part of eocube.

eocube is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

eocube is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with eocube.  If not, see <http://www.gnu.org/licenses/>.
*/

package zarr

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Dtype is a simple Zarr data type in NumPy typestr format: a byte order
// character, a basic type character and a size in bytes, e.g. "<u2".
type Dtype struct {
	ByteOrder ByteOrder
	BasicType BasicType
	ByteSize  int
}

var (
	_ json.Unmarshaler = (*Dtype)(nil)
	_ json.Marshaler   = (*Dtype)(nil)
)

func ParseDtype(s string) (dt Dtype, err error) {
	// Some writers HTML-escape the byte order.
	s = strings.Replace(s, "&lt;", "<", 1)
	s = strings.Replace(s, "&gt;", ">", 1)
	if len(s) < 3 {
		return dt, fmt.Errorf("zarr: invalid dtype %q: too short", s)
	}
	if dt.ByteOrder, err = ParseByteOrder(rune(s[0])); err != nil {
		return dt, err
	}
	if dt.BasicType, err = ParseBasicType(rune(s[1])); err != nil {
		return dt, err
	}
	size, err := strconv.Atoi(s[2:])
	if err != nil {
		return dt, fmt.Errorf("zarr: invalid dtype %q: %w", s, err)
	}
	dt.ByteSize = size
	if _, err := dt.decoder(); err != nil {
		return dt, err
	}
	return dt, nil
}

func (dt Dtype) String() string {
	return fmt.Sprintf("%c%c%d", dt.ByteOrder, dt.BasicType, dt.ByteSize)
}

// Name returns the NumPy name of the type, e.g. "uint16".
func (dt Dtype) Name() string {
	switch dt.BasicType {
	case BTBoolean:
		return "bool"
	case BTInteger:
		return fmt.Sprintf("int%d", dt.ByteSize*8)
	case BTUnsigned:
		return fmt.Sprintf("uint%d", dt.ByteSize*8)
	default:
		return fmt.Sprintf("float%d", dt.ByteSize*8)
	}
}

func (dt Dtype) MarshalJSON() ([]byte, error) {
	return json.Marshal(dt.String())
}

func (dt *Dtype) UnmarshalJSON(d []byte) error {
	var s string
	if err := json.Unmarshal(d, &s); err != nil {
		return err
	}
	t, err := ParseDtype(s)
	if err != nil {
		return err
	}
	*dt = t
	return nil
}

type ByteOrder rune

const (
	BONotRelevant  ByteOrder = '|'
	BOLittleEndian ByteOrder = '<'
	BOBigEndian    ByteOrder = '>'
)

func ParseByteOrder(r rune) (ByteOrder, error) {
	switch o := ByteOrder(r); o {
	case BONotRelevant, BOLittleEndian, BOBigEndian:
		return o, nil
	}
	return 0, fmt.Errorf("zarr: unsupported byte order %q", r)
}

func (o ByteOrder) binary() binary.ByteOrder {
	if o == BOBigEndian {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

type BasicType rune

const (
	BTBoolean       BasicType = 'b'
	BTInteger       BasicType = 'i'
	BTUnsigned      BasicType = 'u'
	BTFloatingPoint BasicType = 'f'
)

func ParseBasicType(r rune) (BasicType, error) {
	switch t := BasicType(r); t {
	case BTBoolean, BTInteger, BTUnsigned, BTFloatingPoint:
		return t, nil
	}
	return 0, fmt.Errorf("zarr: unsupported basic type %q", r)
}

// decoder returns a function converting one element to float64.
func (dt Dtype) decoder() (func([]byte) float64, error) {
	bo := dt.ByteOrder.binary()
	switch {
	case dt.BasicType == BTBoolean && dt.ByteSize == 1,
		dt.BasicType == BTUnsigned && dt.ByteSize == 1:
		return func(b []byte) float64 { return float64(b[0]) }, nil
	case dt.BasicType == BTInteger && dt.ByteSize == 1:
		return func(b []byte) float64 { return float64(int8(b[0])) }, nil
	case dt.BasicType == BTUnsigned && dt.ByteSize == 2:
		return func(b []byte) float64 { return float64(bo.Uint16(b)) }, nil
	case dt.BasicType == BTInteger && dt.ByteSize == 2:
		return func(b []byte) float64 { return float64(int16(bo.Uint16(b))) }, nil
	case dt.BasicType == BTUnsigned && dt.ByteSize == 4:
		return func(b []byte) float64 { return float64(bo.Uint32(b)) }, nil
	case dt.BasicType == BTInteger && dt.ByteSize == 4:
		return func(b []byte) float64 { return float64(int32(bo.Uint32(b))) }, nil
	case dt.BasicType == BTUnsigned && dt.ByteSize == 8:
		return func(b []byte) float64 { return float64(bo.Uint64(b)) }, nil
	case dt.BasicType == BTInteger && dt.ByteSize == 8:
		return func(b []byte) float64 { return float64(int64(bo.Uint64(b))) }, nil
	case dt.BasicType == BTFloatingPoint && dt.ByteSize == 4:
		return func(b []byte) float64 { return float64(math.Float32frombits(bo.Uint32(b))) }, nil
	case dt.BasicType == BTFloatingPoint && dt.ByteSize == 8:
		return func(b []byte) float64 { return math.Float64frombits(bo.Uint64(b)) }, nil
	}
	return nil, fmt.Errorf("zarr: unsupported dtype %s", dt)
}

// Decode converts raw chunk bytes to float64 values.
func (dt Dtype) Decode(b []byte) ([]float64, error) {
	if len(b)%dt.ByteSize != 0 {
		return nil, fmt.Errorf("zarr: %d bytes is not a multiple of the %s element size", len(b), dt)
	}
	f, err := dt.decoder()
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(b)/dt.ByteSize)
	for i := range out {
		out[i] = f(b[i*dt.ByteSize : (i+1)*dt.ByteSize])
	}
	return out, nil
}
