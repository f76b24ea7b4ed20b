package fixtures

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFiles(t *testing.T, files map[string]string) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	for path, body := range files {
		require.NoError(t, afero.WriteFile(fs, path, []byte(body), 0o644))
	}
	return fs
}

func TestLoad(t *testing.T) {
	fs := writeFiles(t, map[string]string{
		"page-objects/login.yaml":                 "url: /login\nselectors:\n  submit: \"#submit\"\n",
		"page-objects/checkout/payment-form.json": `{"cardNumber": "input[name=card]"}`,
		"page-objects/README.md":                  "not a fixture",
	})

	ns, err := Load(fs, "page-objects")
	require.NoError(t, err)

	assert.Equal(t, []string{"checkoutPaymentForm", "login"}, ns.Names())
	assert.Equal(t, "/login", ns.String("login.url"))
	assert.Equal(t, "#submit", ns.String("login.selectors.submit"))
	assert.Equal(t, "input[name=card]", ns.String("checkoutPaymentForm.cardNumber"))

	_, ok := ns.Get("login.selectors.missing")
	assert.False(t, ok)
	_, ok = ns.Get("nope")
	assert.False(t, ok)
}

func TestLoad_MissingDirIsEmpty(t *testing.T) {
	ns, err := Load(afero.NewMemMapFs(), "page-objects")
	require.NoError(t, err)
	assert.Empty(t, ns)

	ns, err = Load(afero.NewMemMapFs(), "")
	require.NoError(t, err)
	assert.Empty(t, ns)
}

func TestLoad_MalformedFile(t *testing.T) {
	fs := writeFiles(t, map[string]string{"page-objects/bad.yaml": "a: [1, 2"})
	_, err := Load(fs, "page-objects")
	assert.ErrorContains(t, err, "bad.yaml")
}

func TestLoad_DuplicateNames(t *testing.T) {
	fs := writeFiles(t, map[string]string{
		"page-objects/home.yaml": "a: 1\n",
		"page-objects/home.json": `{"a": 2}`,
	})
	_, err := Load(fs, "page-objects")
	assert.ErrorContains(t, err, `"home"`)
}

func TestLoadShared(t *testing.T) {
	fs := writeFiles(t, map[string]string{
		"shared-objects/foo.yaml":   "foo: bar\n",
		"shared-objects/users.yaml": "admin: root\n",
		"team-objects/users.yaml":   "admin: alice\n",
	})

	ns, err := LoadShared(fs, []string{"shared-objects", "team-objects", "missing"})
	require.NoError(t, err)

	want := Namespace{
		"foo":   Fixture{"foo": "bar"},
		"users": Fixture{"admin": "alice"},
	}
	if diff := cmp.Diff(want, ns); diff != "" {
		t.Errorf("LoadShared() mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadShared_NestedLookups(t *testing.T) {
	fs := writeFiles(t, map[string]string{
		"shared-objects/users.yaml": "standard:\n  email: yaml@example.com\n  address:\n    city: Leeds\n",
		"shared-objects/api.json":   `{"standard": {"email": "json@example.com"}}`,
	})

	ns, err := LoadShared(fs, []string{"shared-objects"})
	require.NoError(t, err)

	assert.Equal(t, "yaml@example.com", ns.String("users.standard.email"))
	assert.Equal(t, "Leeds", ns.String("users.standard.address.city"))
	assert.Equal(t, "json@example.com", ns.String("api.standard.email"))

	v, ok := ns.Get("users.standard")
	require.True(t, ok)
	assert.NotNil(t, v)
	_, ok = ns.Get("users.standard.email.domain")
	assert.False(t, ok)
}

func TestName(t *testing.T) {
	assert.Equal(t, "login", Name("login.yaml"))
	assert.Equal(t, "checkoutPaymentForm", Name("checkout/payment-form.yml"))
	assert.Equal(t, "searchResults", Name("search_results.json"))
}
