// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package storage

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"
	"github.com/poiesic/assetfind/core"
)

// assetFormatVersion leads every encoded asset so the layout can evolve.
const assetFormatVersion = 1

// MarshalAsset serializes an Asset to bytes.
func MarshalAsset(asset *core.Asset) []byte {
	buf := make([]byte, assetSize(asset))
	n := varint.Int.Marshal(assetFormatVersion, buf)
	n += copy(buf[n:], asset.ID[:])
	n += ord.String.Marshal(asset.OriginalName, buf[n:])
	n += ord.String.Marshal(asset.MimeType, buf[n:])
	n += marshalStrings(asset.AIData.Tags, buf[n:])
	n += ord.String.Marshal(asset.AIData.Description, buf[n:])
	n += ord.String.Marshal(asset.AIData.Transcript, buf[n:])
	n += marshalStrings(asset.AIData.Colors, buf[n:])
	n += marshalFloats(asset.Embedding, buf[n:])
	n += varint.Int64.Marshal(timeToMicros(asset.CreatedAt), buf[n:])
	varint.Int64.Marshal(timeToMicros(asset.UpdatedAt), buf[n:])
	return buf
}

// UnmarshalAsset deserializes an Asset from bytes.
func UnmarshalAsset(data []byte) (*core.Asset, error) {
	d := &decoder{bs: data}
	if version := d.readInt(); d.err == nil && version != assetFormatVersion {
		return nil, fmt.Errorf("%w: asset version %d", ErrUnsupportedFormat, version)
	}
	asset := &core.Asset{}
	asset.ID = d.readUUID()
	asset.OriginalName = d.readString()
	asset.MimeType = d.readString()
	asset.AIData.Tags = d.readStrings()
	asset.AIData.Description = d.readString()
	asset.AIData.Transcript = d.readString()
	asset.AIData.Colors = d.readStrings()
	asset.Embedding = d.readFloats()
	asset.CreatedAt = microsToTime(d.readInt64())
	asset.UpdatedAt = microsToTime(d.readInt64())
	if d.err != nil {
		return nil, d.err
	}
	return asset, nil
}

// MarshalVector serializes an embedding to bytes.
func MarshalVector(vec []float32) []byte {
	buf := make([]byte, floatsSize(vec))
	marshalFloats(vec, buf)
	return buf
}

// UnmarshalVector deserializes an embedding from bytes.
func UnmarshalVector(data []byte) ([]float32, error) {
	d := &decoder{bs: data}
	vec := d.readFloats()
	return vec, d.err
}

// MarshalInt serializes an int to bytes.
func MarshalInt(v int) []byte {
	buf := make([]byte, varint.Int.Size(v))
	varint.Int.Marshal(v, buf)
	return buf
}

// UnmarshalInt deserializes an int from bytes.
func UnmarshalInt(data []byte) (int, error) {
	d := &decoder{bs: data}
	v := d.readInt()
	return v, d.err
}

func assetSize(asset *core.Asset) int {
	return varint.Int.Size(assetFormatVersion) +
		len(asset.ID) +
		ord.String.Size(asset.OriginalName) +
		ord.String.Size(asset.MimeType) +
		stringsSize(asset.AIData.Tags) +
		ord.String.Size(asset.AIData.Description) +
		ord.String.Size(asset.AIData.Transcript) +
		stringsSize(asset.AIData.Colors) +
		floatsSize(asset.Embedding) +
		varint.Int64.Size(timeToMicros(asset.CreatedAt)) +
		varint.Int64.Size(timeToMicros(asset.UpdatedAt))
}

func stringsSize(ss []string) int {
	size := varint.Int.Size(len(ss))
	for _, s := range ss {
		size += ord.String.Size(s)
	}
	return size
}

func marshalStrings(ss []string, bs []byte) int {
	n := varint.Int.Marshal(len(ss), bs)
	for _, s := range ss {
		n += ord.String.Marshal(s, bs[n:])
	}
	return n
}

func floatsSize(vec []float32) int {
	size := varint.Int.Size(len(vec))
	for _, f := range vec {
		size += raw.Float32.Size(f)
	}
	return size
}

func marshalFloats(vec []float32, bs []byte) int {
	n := varint.Int.Marshal(len(vec), bs)
	for _, f := range vec {
		n += raw.Float32.Marshal(f, bs[n:])
	}
	return n
}

// Zero times encode as 0 so they survive the round trip as zero values.
func timeToMicros(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMicro()
}

func microsToTime(us int64) time.Time {
	if us == 0 {
		return time.Time{}
	}
	return time.UnixMicro(us).UTC()
}

// decoder walks an encoded buffer and keeps the first error.
type decoder struct {
	bs  []byte
	n   int
	err error
}

func (d *decoder) fail(err error) {
	if d.err == nil {
		d.err = fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
}

func (d *decoder) readInt() int {
	if d.err != nil {
		return 0
	}
	v, n, err := varint.Int.Unmarshal(d.bs[d.n:])
	if err != nil {
		d.fail(err)
		return 0
	}
	d.n += n
	return v
}

func (d *decoder) readInt64() int64 {
	if d.err != nil {
		return 0
	}
	v, n, err := varint.Int64.Unmarshal(d.bs[d.n:])
	if err != nil {
		d.fail(err)
		return 0
	}
	d.n += n
	return v
}

func (d *decoder) readString() string {
	if d.err != nil {
		return ""
	}
	v, n, err := ord.String.Unmarshal(d.bs[d.n:])
	if err != nil {
		d.fail(err)
		return ""
	}
	d.n += n
	return v
}

func (d *decoder) readUUID() uuid.UUID {
	var id uuid.UUID
	if d.err != nil {
		return id
	}
	if len(d.bs)-d.n < len(id) {
		d.fail(ErrTruncatedData)
		return id
	}
	d.n += copy(id[:], d.bs[d.n:])
	return id
}

// readLength reads a collection length and rejects values the remaining
// buffer cannot hold, each element taking at least minElem bytes.
func (d *decoder) readLength(minElem int) int {
	l := d.readInt()
	if d.err != nil {
		return 0
	}
	if l < 0 || l*minElem > len(d.bs)-d.n {
		d.fail(ErrTruncatedData)
		return 0
	}
	return l
}

func (d *decoder) readStrings() []string {
	l := d.readLength(1)
	if l == 0 {
		return nil
	}
	ss := make([]string, l)
	for i := range ss {
		ss[i] = d.readString()
	}
	if d.err != nil {
		return nil
	}
	return ss
}

func (d *decoder) readFloats() []float32 {
	l := d.readLength(4)
	if l == 0 {
		return nil
	}
	vec := make([]float32, l)
	for i := range vec {
		if d.err != nil {
			return nil
		}
		v, n, err := raw.Float32.Unmarshal(d.bs[d.n:])
		if err != nil {
			d.fail(err)
			return nil
		}
		d.n += n
		vec[i] = v
	}
	return vec
}
