package griddb

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCamelCase(t *testing.T) {
	tests := []struct{ in, want string }{
		{"notification_address", "notificationAddress"},
		{"notificationAddress", "notificationAddress"},
		{"NotificationAddress", "notificationAddress"},
		{"cluster-name", "clusterName"},
		{"cluster name", "clusterName"},
		{"user", "user"},
		{"USER", "user"},
		{"HTTPPort", "httpPort"},
		{"read_only", "readOnly"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := camelCase(tt.in); got != tt.want {
			t.Errorf("** camelCase(%q) = %q, wanted %q", tt.in, got, tt.want)
		}
	}
}

func TestProperties(t *testing.T) {
	p := Props("notification_address", "239.0.0.1", "user", "admin", "password", "secret")
	p2 := p.With("User", "other")
	deepEqual(t, len(p), 3)

	deepEqual(t, must2(p.Get("notificationAddress")), "239.0.0.1")
	deepEqual(t, must2(p2.Get("user")), "other")
	_, ok := p.Get("clusterName")
	deepEqual(t, ok, false)

	deepEqual(t, p2.engineMap(), map[string]string{
		"notificationAddress": "239.0.0.1",
		"user":                "other",
		"password":            "secret",
	})
	deepEqual(t, p.String(), "notificationAddress=239.0.0.1 user=admin password=***")
}

func must2(v string, ok bool) string {
	if !ok {
		panic("missing")
	}
	return v
}

func TestParseProperties(t *testing.T) {
	p := must(ParseProperties([]byte("notification_address: 239.0.0.1\nnotification_port: 31999\ncluster_name: myCluster\n")))
	deepEqual(t, p, Properties{
		{"notification_address", "239.0.0.1"},
		{"notification_port", "31999"},
		{"cluster_name", "myCluster"},
	})
	deepEqual(t, len(must(ParseProperties(nil))), 0)

	for _, bad := range []string{"- a\n- b\n", "user: [a, b]\n", "user: {\n"} {
		_, err := ParseProperties([]byte(bad))
		isKind(t, err, ErrConvert)
	}
}

func TestLoadProperties(t *testing.T) {
	fn := filepath.Join(t.TempDir(), "grid.yaml")
	ensure(os.WriteFile(fn, []byte("clusterName: c1\nuser: admin\n"), 0o644))
	p := must(LoadProperties(fn))
	deepEqual(t, must2(p.Get("cluster_name")), "c1")

	_, err := LoadProperties(filepath.Join(t.TempDir(), "missing.yaml"))
	isKind(t, err, ErrConvert)
}
