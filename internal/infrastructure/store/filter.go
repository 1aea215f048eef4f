package store

import (
	"encoding/json"
	"sort"
	"strings"
	"time"
)

// applyQuery 在記憶體中套用過濾、排序與上限
// badger 與 memory 後端共用，查詢量受集合上限約束（見 PreferenceConfig）
func applyQuery(docs []Document, q Query) []Document {
	out := make([]Document, 0, len(docs))
	for _, doc := range docs {
		fields, err := decodeFields(doc.Data)
		if err != nil {
			continue
		}
		if matchAll(fields, q.Where) {
			out = append(out, doc)
		}
	}

	if q.OrderBy != "" {
		sort.SliceStable(out, func(i, j int) bool {
			fi, _ := decodeFields(out[i].Data)
			fj, _ := decodeFields(out[j].Data)
			cmp := compareValues(fi[q.OrderBy], fj[q.OrderBy])
			if q.Desc {
				return cmp > 0
			}
			return cmp < 0
		})
	} else {
		// 無排序條件時依 ID 排序，確保結果穩定
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].ID < out[j].ID
		})
	}

	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out
}

// mergeDocuments 以頂層欄位為單位合併文件，update 出現的欄位覆寫 existing
func mergeDocuments(existing, update []byte) ([]byte, error) {
	base, err := decodeFields(existing)
	if err != nil {
		return nil, err
	}
	patch, err := decodeFields(update)
	if err != nil {
		return nil, err
	}
	for k, v := range patch {
		base[k] = v
	}
	return json.Marshal(base)
}

func decodeFields(data []byte) (map[string]interface{}, error) {
	var fields map[string]interface{}
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}
	return fields, nil
}

func matchAll(fields map[string]interface{}, where []Where) bool {
	for _, w := range where {
		got, ok := fields[w.Field]
		if !ok {
			return false
		}
		cmp := compareValues(got, w.Value)
		switch w.Op {
		case OpEqual:
			if cmp != 0 {
				return false
			}
		case OpGreater:
			if cmp <= 0 {
				return false
			}
		case OpGreaterEqual:
			if cmp < 0 {
				return false
			}
		case OpLess:
			if cmp >= 0 {
				return false
			}
		case OpLessEqual:
			if cmp > 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// compareValues 比較文件欄位與查詢值，回傳 -1/0/1
// 時間、數值、字串各自以原生型別比較，無法比較時視為不相等
func compareValues(a, b interface{}) int {
	if ta, ok := asTime(a); ok {
		if tb, ok := asTime(b); ok {
			switch {
			case ta.Before(tb):
				return -1
			case ta.After(tb):
				return 1
			default:
				return 0
			}
		}
	}

	if fa, ok := asFloat(a); ok {
		if fb, ok := asFloat(b); ok {
			switch {
			case fa < fb:
				return -1
			case fa > fb:
				return 1
			default:
				return 0
			}
		}
	}

	sa, sb := asString(a), asString(b)
	return strings.Compare(sa, sb)
}

func asTime(v interface{}) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		if parsed, err := time.Parse(time.RFC3339Nano, t); err == nil {
			return parsed, true
		}
		if parsed, err := time.Parse(time.RFC3339, t); err == nil {
			return parsed, true
		}
	}
	return time.Time{}, false
}

func asFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

func asString(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(data)
}
