package results

import (
	"bytes"
	"encoding/json"
)

// Group holds the records of one GroupKey. Its count is always the number of details.
type Group struct {
	details []Record
}

func (g *Group) add(r Record) {
	g.details = append(g.details, r)
}

// Details returns the records in insertion order.
func (g *Group) Details() []Record {
	out := make([]Record, len(g.details))
	copy(out, g.details)
	return out
}

func (g *Group) Count() int {
	return len(g.details)
}

func (g *Group) MarshalJSON() ([]byte, error) {
	details := g.details
	if details == nil {
		details = []Record{}
	}
	return marshalNoEscape(struct {
		Details []Record `json:"details"`
		Count   int      `json:"count"`
	}{
		Details: details,
		Count:   len(details),
	})
}

// Collection maps GroupKeys to groups, keeping keys in first-seen order.
type Collection struct {
	keys   []GroupKey
	groups map[GroupKey]*Group
}

func NewCollection() *Collection {
	return &Collection{groups: make(map[GroupKey]*Group)}
}

// Add appends a record to the group of key, creating the group on first use.
func (c *Collection) Add(key GroupKey, r Record) {
	c.ensureGroup(key).add(r)
}

func (c *Collection) ensureGroup(key GroupKey) *Group {
	if g, ok := c.groups[key]; ok {
		return g
	}
	g := &Group{}
	c.groups[key] = g
	c.keys = append(c.keys, key)
	return g
}

// Keys returns the group keys in first-seen order.
func (c *Collection) Keys() []GroupKey {
	out := make([]GroupKey, len(c.keys))
	copy(out, c.keys)
	return out
}

func (c *Collection) Group(key GroupKey) (*Group, bool) {
	g, ok := c.groups[key]
	return g, ok
}

// Len returns the number of groups.
func (c *Collection) Len() int {
	return len(c.keys)
}

// Total returns the number of records across all groups.
func (c *Collection) Total() int {
	total := 0
	for _, g := range c.groups {
		total += g.Count()
	}
	return total
}

// MarshalJSON writes the collection as an object keyed by GroupKey string in
// insertion order.
func (c *Collection) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range c.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, err := marshalNoEscape(key.String())
		if err != nil {
			return nil, err
		}
		group, err := c.groups[key].MarshalJSON()
		if err != nil {
			return nil, err
		}
		buf.Write(name)
		buf.WriteByte(':')
		buf.Write(group)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func marshalNoEscape(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
