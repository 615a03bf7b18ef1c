package types

import (
	"fmt"
	"net/url"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"
)

// ExValues is a generic container for HTTP request parameters.
//
// It keeps three independent sections (query, body, header). Every section
// remembers the first-seen order of its keys, so EncodeQuery and EncodeForm
// reproduce insertion order byte for byte. That matters for signing: the
// dispatcher signs exactly the bytes it later sends.
type ExValues struct {
	query  orderedValues
	body   orderedValues
	header orderedValues
}

type orderedValues struct {
	order  []string
	values map[string][]string
}

// NewExValues creates a new ExValues instance.
func NewExValues() *ExValues {
	v := &ExValues{}
	v.Reset()
	return v
}

func (o *orderedValues) set(key string, vals []string) {
	if _, exists := o.values[key]; !exists {
		o.order = append(o.order, key)
	}
	o.values[key] = vals
}

func (o *orderedValues) add(key string, vals []string) {
	if _, exists := o.values[key]; !exists {
		o.order = append(o.order, key)
	}
	o.values[key] = append(o.values[key], vals...)
}

func (o *orderedValues) get(key string) string {
	if vs := o.values[key]; len(vs) > 0 {
		return vs[0]
	}
	return ""
}

func (o *orderedValues) has(key string) bool {
	_, ok := o.values[key]
	return ok
}

func (o *orderedValues) encode() string {
	var buf strings.Builder
	for _, key := range o.order {
		keyEscaped := url.QueryEscape(key)
		for _, value := range o.values[key] {
			if buf.Len() > 0 {
				buf.WriteByte('&')
			}
			buf.WriteString(keyEscaped)
			buf.WriteByte('=')
			buf.WriteString(url.QueryEscape(value))
		}
	}
	return buf.String()
}

// toMap: single value -> string, multiple values -> []string.
func (o *orderedValues) toMap() map[string]any {
	m := make(map[string]any, len(o.values))
	for _, key := range o.order {
		vs := o.values[key]
		if len(vs) == 1 {
			m[key] = vs[0]
		} else if len(vs) > 1 {
			m[key] = vs
		}
	}
	return m
}

// SetQuery sets the query value(s) for key, replacing existing values.
// Slices and arrays expand into repeated values.
func (v *ExValues) SetQuery(key string, value any) { v.query.set(key, formatValues(value)) }

// AddQuery appends query value(s) for key.
func (v *ExValues) AddQuery(key string, value any) { v.query.add(key, formatValues(value)) }

// GetQuery returns the first query value for key.
func (v *ExValues) GetQuery(key string) string { return v.query.get(key) }

// HasQuery reports whether the query key exists.
func (v *ExValues) HasQuery(key string) bool { return v.query.has(key) }

// SetBody sets the body value(s) for key, replacing existing values.
func (v *ExValues) SetBody(key string, value any) { v.body.set(key, formatValues(value)) }

// AddBody appends body value(s) for key.
func (v *ExValues) AddBody(key string, value any) { v.body.add(key, formatValues(value)) }

// GetBody returns the first body value for key.
func (v *ExValues) GetBody(key string) string { return v.body.get(key) }

// HasBody reports whether the body key exists.
func (v *ExValues) HasBody(key string) bool { return v.body.has(key) }

// SetHeader sets the header value(s) for key, replacing existing values.
func (v *ExValues) SetHeader(key string, value any) { v.header.set(key, formatValues(value)) }

// AddHeader appends header value(s) for key.
func (v *ExValues) AddHeader(key string, value any) { v.header.add(key, formatValues(value)) }

// GetHeader returns the first header value for key.
func (v *ExValues) GetHeader(key string) string { return v.header.get(key) }

// HasHeader reports whether the header key exists.
func (v *ExValues) HasHeader(key string) bool { return v.header.has(key) }

// EncodeQuery encodes query parameters preserving insertion order.
func (v *ExValues) EncodeQuery() string { return v.query.encode() }

// EncodeForm encodes body parameters as application/x-www-form-urlencoded.
func (v *ExValues) EncodeForm() string { return v.body.encode() }

// EncodeBody returns the body section as a map.
func (v *ExValues) EncodeBody() map[string]any { return v.body.toMap() }

// EncodeHeader returns the header section as a map.
func (v *ExValues) EncodeHeader() map[string]any { return v.header.toMap() }

// HeaderKeys returns header keys in insertion order.
func (v *ExValues) HeaderKeys() []string {
	return append([]string(nil), v.header.order...)
}

// EncodeJSON encodes the body section as a JSON object. An empty body
// encodes to nil so GET requests stay body-less.
func (v *ExValues) EncodeJSON() ([]byte, error) {
	if len(v.body.order) == 0 {
		return nil, nil
	}
	return json.Marshal(v.body.toMap())
}

// JoinPath joins the encoded query string to the given path.
func (v *ExValues) JoinPath(path string) string {
	query := v.EncodeQuery()
	if query == "" {
		return path
	}
	if strings.Contains(path, "?") {
		return path + "&" + query
	}
	return path + "?" + query
}

// SortQuery reorders query keys alphabetically. Some exchanges sign the
// sorted query string rather than the insertion order.
func (v *ExValues) SortQuery() {
	sort.Strings(v.query.order)
}

// Clone returns a deep copy.
func (v *ExValues) Clone() *ExValues {
	c := NewExValues()
	for _, pair := range []struct{ dst, src *orderedValues }{
		{&c.query, &v.query}, {&c.body, &v.body}, {&c.header, &v.header},
	} {
		for _, key := range pair.src.order {
			pair.dst.set(key, append([]string(nil), pair.src.values[key]...))
		}
	}
	return c
}

// Reset clears all stored parameters.
func (v *ExValues) Reset() {
	v.query = orderedValues{values: make(map[string][]string)}
	v.body = orderedValues{values: make(map[string][]string)}
	v.header = orderedValues{values: make(map[string][]string)}
}

func formatValues(value any) []string {
	switch val := value.(type) {
	case nil:
		return []string{""}
	case []string:
		return append([]string(nil), val...)
	}

	rv := reflect.ValueOf(value)
	if rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() == reflect.Uint8 {
		// []byte and raw JSON messages are kept verbatim
		return []string{string(rv.Bytes())}
	}
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		out := make([]string, 0, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			out = append(out, formatValue(rv.Index(i).Interface()))
		}
		return out
	}
	return []string{formatValue(value)}
}

func formatValue(value any) string {
	switch val := value.(type) {
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case int:
		return strconv.Itoa(val)
	case int32:
		return strconv.FormatInt(int64(val), 10)
	case int64:
		return strconv.FormatInt(val, 10)
	case uint64:
		return strconv.FormatUint(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case decimal.Decimal:
		return val.String()
	case time.Time:
		return val.UTC().Format(time.RFC3339Nano)
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprintf("%v", val)
	}
}
