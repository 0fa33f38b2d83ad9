package core

import (
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"
)

// Serializers for stored records, composed from mus-go primitives.
// Timestamps are stored as Unix microseconds; a zero time is stored as 0.
var (
	IDMUS         = idMUS{}
	DocumentMUS   = documentMUS{}
	CheckpointMUS = checkpointMUS{}
)

type idMUS struct{}

func (idMUS) Marshal(v ID, bs []byte) (n int) {
	return varint.Uint64.Marshal(uint64(v), bs)
}

func (idMUS) Unmarshal(bs []byte) (v ID, n int, err error) {
	u, n, err := varint.Uint64.Unmarshal(bs)
	return ID(u), n, err
}

func (idMUS) Size(v ID) int {
	return varint.Uint64.Size(uint64(v))
}

func marshalTime(t time.Time, bs []byte) int {
	return varint.Int64.Marshal(timeToMicro(t), bs)
}

func unmarshalTime(bs []byte) (time.Time, int, error) {
	us, n, err := varint.Int64.Unmarshal(bs)
	if err != nil {
		return time.Time{}, n, err
	}
	if us == 0 {
		return time.Time{}, n, nil
	}
	return time.UnixMicro(us).UTC(), n, nil
}

func sizeTime(t time.Time) int {
	return varint.Int64.Size(timeToMicro(t))
}

func timeToMicro(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMicro()
}

func unmarshalLength(bs []byte) (int, int, error) {
	l, n, err := varint.Int.Unmarshal(bs)
	if err != nil {
		return 0, n, err
	}
	if l < 0 {
		return 0, n, ErrMalformedData
	}
	return l, n, nil
}

type documentMUS struct{}

func (documentMUS) Marshal(v Document, bs []byte) (n int) {
	n = IDMUS.Marshal(v.Id, bs)
	n += ord.String.Marshal(v.Content, bs[n:])
	n += ord.String.Marshal(v.Source, bs[n:])
	n += varint.Int.Marshal(len(v.Metadata), bs[n:])
	for k, val := range v.Metadata {
		n += ord.String.Marshal(k, bs[n:])
		n += ord.String.Marshal(val, bs[n:])
	}
	n += varint.Int.Marshal(len(v.Vector), bs[n:])
	for _, f := range v.Vector {
		n += raw.Float32.Marshal(f, bs[n:])
	}
	n += marshalTime(v.InsertedAt, bs[n:])
	n += marshalTime(v.UpdatedAt, bs[n:])
	return n
}

func (documentMUS) Unmarshal(bs []byte) (v Document, n int, err error) {
	var n1 int
	if v.Id, n1, err = IDMUS.Unmarshal(bs); err != nil {
		return
	}
	n += n1
	if v.Content, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	if v.Source, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1

	var count int
	if count, n1, err = unmarshalLength(bs[n:]); err != nil {
		return
	}
	n += n1
	if count > 0 {
		v.Metadata = make(map[string]string, count)
		for i := 0; i < count; i++ {
			var key, val string
			if key, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
				return
			}
			n += n1
			if val, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
				return
			}
			n += n1
			v.Metadata[key] = val
		}
	}

	if count, n1, err = unmarshalLength(bs[n:]); err != nil {
		return
	}
	n += n1
	if count > 0 {
		v.Vector = make([]float32, count)
		for i := range v.Vector {
			if v.Vector[i], n1, err = raw.Float32.Unmarshal(bs[n:]); err != nil {
				return
			}
			n += n1
		}
	}

	if v.InsertedAt, n1, err = unmarshalTime(bs[n:]); err != nil {
		return
	}
	n += n1
	if v.UpdatedAt, n1, err = unmarshalTime(bs[n:]); err != nil {
		return
	}
	n += n1
	return
}

func (documentMUS) Size(v Document) (size int) {
	size = IDMUS.Size(v.Id)
	size += ord.String.Size(v.Content)
	size += ord.String.Size(v.Source)
	size += varint.Int.Size(len(v.Metadata))
	for k, val := range v.Metadata {
		size += ord.String.Size(k) + ord.String.Size(val)
	}
	size += varint.Int.Size(len(v.Vector))
	for _, f := range v.Vector {
		size += raw.Float32.Size(f)
	}
	size += sizeTime(v.InsertedAt)
	size += sizeTime(v.UpdatedAt)
	return size
}

type checkpointMUS struct{}

func (checkpointMUS) Marshal(v Checkpoint, bs []byte) (n int) {
	n = ord.String.Marshal(v.ProcessorType, bs)
	n += IDMUS.Marshal(v.LastID, bs[n:])
	n += marshalTime(v.UpdatedAt, bs[n:])
	return n
}

func (checkpointMUS) Unmarshal(bs []byte) (v Checkpoint, n int, err error) {
	var n1 int
	if v.ProcessorType, n1, err = ord.String.Unmarshal(bs); err != nil {
		return
	}
	n += n1
	if v.LastID, n1, err = IDMUS.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	if v.UpdatedAt, n1, err = unmarshalTime(bs[n:]); err != nil {
		return
	}
	n += n1
	return
}

func (checkpointMUS) Size(v Checkpoint) int {
	return ord.String.Size(v.ProcessorType) + IDMUS.Size(v.LastID) + sizeTime(v.UpdatedAt)
}
