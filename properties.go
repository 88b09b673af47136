package griddb

import (
	"fmt"
	"os"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"
)

// Well-known connection property keys.
const (
	PropNotificationAddress = "notificationAddress"
	PropNotificationPort    = "notificationPort"
	PropClusterName         = "clusterName"
	PropUser                = "user"
	PropPassword            = "password"
)

type Property struct {
	Key   string
	Value string
}

// Properties are connection properties in the order given. Keys may use any
// case convention; they are normalized to camelCase before reaching the
// engine, so "notification_address", "NotificationAddress" and
// "notificationAddress" are the same key. Later entries win.
type Properties []Property

// Props builds Properties out of alternating keys and values.
func Props(kv ...string) Properties {
	if len(kv)%2 != 0 {
		panic(fmt.Errorf("griddb: Props needs an even number of arguments, got %d", len(kv)))
	}
	p := make(Properties, 0, len(kv)/2)
	for i := 0; i < len(kv); i += 2 {
		p = append(p, Property{kv[i], kv[i+1]})
	}
	return p
}

// With returns a copy of p with an extra entry appended.
func (p Properties) With(key, value string) Properties {
	return append(p[:len(p):len(p)], Property{key, value})
}

// Get returns the last value of key, comparing normalized keys.
func (p Properties) Get(key string) (string, bool) {
	key = camelCase(key)
	for i := len(p) - 1; i >= 0; i-- {
		if camelCase(p[i].Key) == key {
			return p[i].Value, true
		}
	}
	return "", false
}

func (p Properties) engineMap() map[string]string {
	m := make(map[string]string, len(p))
	for _, e := range p {
		m[camelCase(e.Key)] = e.Value
	}
	return m
}

// String masks the password.
func (p Properties) String() string {
	var buf strings.Builder
	for i, e := range p {
		if i > 0 {
			buf.WriteByte(' ')
		}
		buf.WriteString(camelCase(e.Key))
		buf.WriteByte('=')
		if camelCase(e.Key) == PropPassword {
			buf.WriteString("***")
		} else {
			buf.WriteString(e.Value)
		}
	}
	return buf.String()
}

// LoadProperties reads Properties from a YAML file holding a flat mapping.
func LoadProperties(path string) (Properties, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errf(KindConvert, err, "cannot read %s", path).op("LOAD_PROPERTIES")
	}
	p, err := ParseProperties(data)
	if err != nil {
		e := err.(*Error)
		e.Msg = path + ": " + e.Msg
		return nil, e
	}
	return p, nil
}

// ParseProperties parses a flat YAML mapping of scalars, keeping key order:
//
//	notification_address: 239.0.0.1
//	notification_port: 31999
//	cluster_name: myCluster
func ParseProperties(data []byte) (Properties, error) {
	const op = "PARSE_PROPERTIES"
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errf(KindConvert, err, "invalid YAML").op(op)
	}
	if len(doc.Content) == 0 {
		return Properties{}, nil
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, errf(KindConvert, nil, "line %d: properties must be a mapping", root.Line).op(op)
	}
	p := make(Properties, 0, len(root.Content)/2)
	for i := 0; i+1 < len(root.Content); i += 2 {
		k, v := root.Content[i], root.Content[i+1]
		if v.Kind != yaml.ScalarNode {
			return nil, errf(KindConvert, nil, "line %d: property %q must be a scalar", v.Line, k.Value).op(op)
		}
		p = append(p, Property{k.Value, v.Value})
	}
	return p, nil
}

// camelCase converts snake_case, kebab-case, space separated and PascalCase
// keys to camelCase.
func camelCase(s string) string {
	var words []string
	var cur []rune
	flush := func() {
		if len(cur) > 0 {
			words = append(words, strings.ToLower(string(cur)))
			cur = cur[:0]
		}
	}
	rs := []rune(s)
	for i, r := range rs {
		switch {
		case r == '_' || r == '-' || unicode.IsSpace(r):
			flush()
			continue
		case unicode.IsUpper(r) && len(cur) > 0:
			prev := cur[len(cur)-1]
			nextLower := i+1 < len(rs) && unicode.IsLower(rs[i+1])
			if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
				flush()
			}
		}
		cur = append(cur, r)
	}
	flush()

	var buf strings.Builder
	for i, w := range words {
		if i == 0 {
			buf.WriteString(w)
			continue
		}
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		buf.WriteString(string(r))
	}
	return buf.String()
}
