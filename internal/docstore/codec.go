package docstore

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/dkezele/ripple/internal/domain"
)

// MarshalWithID marshals doc and stamps the backend-assigned id into the
// body, the way hosted document stores materialize ids on read.
func MarshalWithID(doc any, id string) (json.RawMessage, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	m["id"] = id
	return json.Marshal(m)
}

// MergeFields applies a top-level field merge to a document body.
func MergeFields(data json.RawMessage, fields map[string]any) (json.RawMessage, error) {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	for k, v := range fields {
		m[k] = v
	}
	return json.Marshal(m)
}

// OrderValue extracts the ordering field from a document body and
// normalizes it to epoch millis. A missing field orders first.
func OrderValue(data json.RawMessage, orderBy string) (int64, error) {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return 0, err
	}
	raw, ok := m[orderBy]
	if !ok {
		return 0, nil
	}
	var v any
	dec := json.NewDecoder(strings.NewReader(string(raw)))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return 0, err
	}
	ts, err := domain.NormalizeTimestamp(v)
	if err != nil {
		return 0, err
	}
	return ts.UnixMilli(), nil
}

// SortDocs orders documents ascending by orderBy, ties broken on id.
func SortDocs(docs []Document, orderBy string) error {
	ords := make(map[string]int64, len(docs))
	for _, d := range docs {
		ord, err := OrderValue(d.Data, orderBy)
		if err != nil {
			return err
		}
		ords[d.ID] = ord
	}
	sort.Slice(docs, func(i, j int) bool {
		if ords[docs[i].ID] != ords[docs[j].ID] {
			return ords[docs[i].ID] < ords[docs[j].ID]
		}
		return docs[i].ID < docs[j].ID
	})
	return nil
}
