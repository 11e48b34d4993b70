package graph

import (
	"errors"
	"strconv"
	"strings"
)

// Caps - media type name with ordered fields,
// like "application/x-rtp, media=video, clock-rate=90000"
type Caps struct {
	Name   string
	fields []field
}

type field struct {
	key   string
	value any
}

// NewCaps - NewCaps("audio/x-raw", "rate", 48000, "channels", 2)
func NewCaps(name string, kv ...any) *Caps {
	c := &Caps{Name: name}
	for i := 0; i+1 < len(kv); i += 2 {
		if key, ok := kv[i].(string); ok {
			c.Set(key, kv[i+1])
		}
	}
	return c
}

func ParseCaps(s string) (*Caps, error) {
	items := strings.Split(s, ",")
	name := strings.TrimSpace(items[0])
	if name == "" || strings.IndexByte(name, '=') >= 0 {
		return nil, errors.New("graph: wrong caps: " + s)
	}

	c := &Caps{Name: name}
	for _, item := range items[1:] {
		key, value, ok := strings.Cut(strings.TrimSpace(item), "=")
		if !ok || key == "" {
			return nil, errors.New("graph: wrong caps field: " + item)
		}
		c.Set(key, parseValue(value))
	}
	return c, nil
}

func parseValue(s string) any {
	// (int)90000, (string)H264
	if s != "" && s[0] == '(' {
		if i := strings.IndexByte(s, ')'); i > 0 {
			typ, v := s[1:i], s[i+1:]
			switch typ {
			case "int":
				if i, err := strconv.Atoi(v); err == nil {
					return i
				}
			case "boolean", "bool":
				return v == "true"
			}
			return v
		}
	}
	if i, err := strconv.Atoi(s); err == nil {
		return i
	}
	switch s {
	case "true":
		return true
	case "false":
		return false
	}
	return strings.Trim(s, `"`)
}

func (c *Caps) Set(key string, value any) *Caps {
	for i := range c.fields {
		if c.fields[i].key == key {
			c.fields[i].value = value
			return c
		}
	}
	c.fields = append(c.fields, field{key: key, value: value})
	return c
}

func (c *Caps) Value(key string) (any, bool) {
	if c == nil {
		return nil, false
	}
	for _, f := range c.fields {
		if f.key == key {
			return f.value, true
		}
	}
	return nil, false
}

func (c *Caps) Int(key string) (int, bool) {
	v, ok := c.Value(key)
	if !ok {
		return 0, false
	}
	return ToInt(v)
}

func (c *Caps) String(key string) (string, bool) {
	v, ok := c.Value(key)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func (c *Caps) Copy() *Caps {
	if c == nil {
		return nil
	}
	return &Caps{Name: c.Name, fields: append([]field(nil), c.fields...)}
}

// IsSubset - all fields of c present in other with equal values
func (c *Caps) IsSubset(other *Caps) bool {
	if c == nil {
		return true
	}
	if other == nil || c.Name != other.Name {
		return false
	}
	for _, f := range c.fields {
		v, ok := other.Value(f.key)
		if !ok || !equalValues(f.value, v) {
			return false
		}
	}
	return true
}

func (c *Caps) Format() string {
	if c == nil {
		return ""
	}
	var sb strings.Builder
	sb.WriteString(c.Name)
	for _, f := range c.fields {
		sb.WriteString(", ")
		sb.WriteString(f.key)
		sb.WriteByte('=')
		switch v := f.value.(type) {
		case string:
			sb.WriteString(v)
		case bool:
			sb.WriteString(strconv.FormatBool(v))
		default:
			if i, ok := ToInt(v); ok {
				sb.WriteString(strconv.Itoa(i))
			}
		}
	}
	return sb.String()
}

func equalValues(a, b any) bool {
	if ia, ok := ToInt(a); ok {
		ib, ok := ToInt(b)
		return ok && ia == ib
	}
	return a == b
}

// ToInt converts any integer kind to int
func ToInt(v any) (int, bool) {
	switch v := v.(type) {
	case int:
		return v, true
	case int8:
		return int(v), true
	case int16:
		return int(v), true
	case int32:
		return int(v), true
	case int64:
		return int(v), true
	case uint:
		return int(v), true
	case uint8:
		return int(v), true
	case uint16:
		return int(v), true
	case uint32:
		return int(v), true
	case uint64:
		return int(v), true
	}
	return 0, false
}
