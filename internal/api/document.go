package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dmitrijs2005/bookly/internal/docstore"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/timestamppb"
)

// Document fields travel as a google.protobuf.Struct and times as a
// google.protobuf.Timestamp, each in its protojson form. Values outside the
// Struct model (anything but null, bool, numbers, string, []any and
// map[string]any) fail to encode.

type wireDocument struct {
	ID         string          `json:"id"`
	Path       string          `json:"path"`
	Fields     json.RawMessage `json:"fields"`
	CreateTime json.RawMessage `json:"createTime,omitempty"`
	Seq        int64           `json:"seq"`
}

type wireSnapshot struct {
	Target   string          `json:"target"`
	Docs     []wireDocument  `json:"docs"`
	ReadTime json.RawMessage `json:"readTime,omitempty"`
}

var jsonNull = []byte("null")

func isNull(b []byte) bool {
	return len(b) == 0 || bytes.Equal(b, jsonNull)
}

func encodeFields(f docstore.Fields) (json.RawMessage, error) {
	if f == nil {
		return jsonNull, nil
	}
	s, err := structpb.NewStruct(f)
	if err != nil {
		return nil, fmt.Errorf("encode fields: %w", err)
	}
	return protojson.Marshal(s)
}

func decodeFields(b json.RawMessage) (docstore.Fields, error) {
	if isNull(b) {
		return nil, nil
	}
	var s structpb.Struct
	if err := protojson.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("decode fields: %w", err)
	}
	return docstore.Fields(s.AsMap()), nil
}

func encodeTime(t time.Time) (json.RawMessage, error) {
	if t.IsZero() {
		return nil, nil
	}
	return protojson.Marshal(timestamppb.New(t))
}

func decodeTime(b json.RawMessage) (time.Time, error) {
	if isNull(b) {
		return time.Time{}, nil
	}
	var ts timestamppb.Timestamp
	if err := protojson.Unmarshal(b, &ts); err != nil {
		return time.Time{}, fmt.Errorf("decode time: %w", err)
	}
	if err := ts.CheckValid(); err != nil {
		return time.Time{}, fmt.Errorf("decode time: %w", err)
	}
	return ts.AsTime(), nil
}

func toWire(d docstore.Document) (wireDocument, error) {
	fields, err := encodeFields(d.Fields)
	if err != nil {
		return wireDocument{}, err
	}
	created, err := encodeTime(d.CreateTime)
	if err != nil {
		return wireDocument{}, err
	}
	return wireDocument{ID: d.ID, Path: d.Path, Fields: fields, CreateTime: created, Seq: d.Seq}, nil
}

func fromWire(w wireDocument) (docstore.Document, error) {
	fields, err := decodeFields(w.Fields)
	if err != nil {
		return docstore.Document{}, err
	}
	created, err := decodeTime(w.CreateTime)
	if err != nil {
		return docstore.Document{}, err
	}
	return docstore.Document{ID: w.ID, Path: w.Path, Fields: fields, CreateTime: created, Seq: w.Seq}, nil
}

func (m DocumentResponse) MarshalJSON() ([]byte, error) {
	d, err := toWire(m.Document)
	if err != nil {
		return nil, err
	}
	return json.Marshal(struct {
		Document wireDocument `json:"document"`
	}{d})
}

func (m *DocumentResponse) UnmarshalJSON(b []byte) error {
	var w struct {
		Document wireDocument `json:"document"`
	}
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	d, err := fromWire(w.Document)
	if err != nil {
		return err
	}
	m.Document = d
	return nil
}

func (m AddDocumentRequest) MarshalJSON() ([]byte, error) {
	fields, err := encodeFields(m.Fields)
	if err != nil {
		return nil, err
	}
	return json.Marshal(struct {
		Collection string          `json:"collection"`
		Fields     json.RawMessage `json:"fields"`
	}{m.Collection, fields})
}

func (m *AddDocumentRequest) UnmarshalJSON(b []byte) error {
	var w struct {
		Collection string          `json:"collection"`
		Fields     json.RawMessage `json:"fields"`
	}
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	fields, err := decodeFields(w.Fields)
	if err != nil {
		return err
	}
	m.Collection, m.Fields = w.Collection, fields
	return nil
}

func (m SnapshotMessage) MarshalJSON() ([]byte, error) {
	w := wireSnapshot{Target: m.Snapshot.Target, Docs: make([]wireDocument, 0, len(m.Snapshot.Docs))}
	for _, d := range m.Snapshot.Docs {
		wd, err := toWire(d)
		if err != nil {
			return nil, err
		}
		w.Docs = append(w.Docs, wd)
	}
	read, err := encodeTime(m.Snapshot.ReadTime)
	if err != nil {
		return nil, err
	}
	w.ReadTime = read
	return json.Marshal(struct {
		Snapshot wireSnapshot `json:"snapshot"`
	}{w})
}

func (m *SnapshotMessage) UnmarshalJSON(b []byte) error {
	var w struct {
		Snapshot wireSnapshot `json:"snapshot"`
	}
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	snap := docstore.Snapshot{Target: w.Snapshot.Target, Docs: make([]docstore.Document, 0, len(w.Snapshot.Docs))}
	for _, wd := range w.Snapshot.Docs {
		d, err := fromWire(wd)
		if err != nil {
			return err
		}
		snap.Docs = append(snap.Docs, d)
	}
	read, err := decodeTime(w.Snapshot.ReadTime)
	if err != nil {
		return err
	}
	snap.ReadTime = read
	m.Snapshot = snap
	return nil
}
