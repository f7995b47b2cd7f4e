// pkg/modules/recon/recon_test.go
package recon

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/reconpipe/reconpipe/pkg/db"
	"github.com/reconpipe/reconpipe/pkg/execx"
	"github.com/reconpipe/reconpipe/pkg/scope"
	"github.com/reconpipe/reconpipe/pkg/task"
	"github.com/reconpipe/reconpipe/pkg/tools"
)

type fakeExecutor struct {
	calls []execx.Command
}

func (f *fakeExecutor) Run(_ context.Context, cmd execx.Command) error {
	f.calls = append(f.calls, cmd)
	return nil
}

type fakeDB struct {
	hostnames []string
	addresses []string
	upserts   []string
	added     []any
}

func (f *fakeDB) GetOrCreateTargetByIPOrHostname(identifier string) (*db.Target, error) {
	f.upserts = append(f.upserts, identifier)
	return &db.Target{Model: gorm.Model{ID: uint(len(f.upserts))}, Hostname: identifier}, nil
}

func (f *fakeDB) Add(record any) error {
	f.added = append(f.added, record)
	return nil
}

func (f *fakeDB) GetAllHostnames() ([]string, error)   { return f.hostnames, nil }
func (f *fakeDB) GetAllIPAddresses() ([]string, error) { return f.addresses, nil }
func (f *fakeDB) Close() error                         { return nil }

func testConfig(t *testing.T, store *fakeDB, exec *fakeExecutor) task.Config {
	t.Helper()
	return task.Config{
		ResultsDir: t.TempDir(),
		DB:         store,
		Tools:      tools.NewState(map[string]tools.ToolInfo{
			"amass":   {Installed: true},
			"masscan": {Installed: true},
			"nmap":    {Installed: true, Version: "7.94.0"},
		}),
		Exec: exec,
	}
}

func writeOutput(t *testing.T, s interface{ Output() task.Artifact }, content string) {
	t.Helper()
	path := s.Output().Path
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o640))
}

func TestAmassScanDerivedPaths(t *testing.T) {
	cfg := testConfig(t, &fakeDB{}, &fakeExecutor{})
	s := NewAmassScan(cfg)

	assert.Equal(t, filepath.Join(cfg.ResultsDir, "amass-results"), s.ResultsSubfolder())
	assert.Equal(t, filepath.Join(cfg.ResultsDir, "amass-results", "amass.json"), s.OutputFile())
	assert.Empty(t, s.Requires())
}

func TestAmassParseResults(t *testing.T) {
	store := &fakeDB{}
	s := NewAmassScan(testConfig(t, store, &fakeExecutor{}))

	content := `{"name":"www.example.com","addresses":[{"ip":"93.184.216.34"},{"ip":"2606:2800:220:1::1"}]}
this line is not json
{"name":"mail.example.com","addresses":[{"ip":"93.184.216.35"}]}
`
	writeOutput(t, s, content)

	require.NoError(t, s.ParseResults(context.Background()))

	assert.Equal(t, []string{"www.example.com", "mail.example.com"}, store.upserts,
		"two well-formed records persist, the malformed line is skipped")
	require.Len(t, store.added, 3)
	first, ok := store.added[0].(*db.IPAddress)
	require.True(t, ok)
	assert.Equal(t, "93.184.216.34", first.IPv4Address)
	second, ok := store.added[1].(*db.IPAddress)
	require.True(t, ok)
	assert.Equal(t, "2606:2800:220:1::1", second.IPv6Address)
	assert.True(t, s.Output().Exists())
}

func TestAmassParseResultsScopeFilter(t *testing.T) {
	store := &fakeDB{}
	cfg := testConfig(t, store, &fakeExecutor{})

	policy, err := scope.ParsePolicy(strings.NewReader(`{
  "target": {"scope": {
    "exclude": [{"host": "example\\.com$"}],
    "include": [{"host": "^admin\\.example\\.com$"}]
  }}
}`))
	require.NoError(t, err)
	cfg.Scope = policy

	s := NewAmassScan(cfg)
	writeOutput(t, s, `{"name":"admin.example.com","addresses":[]}
{"name":"www.example.com","addresses":[]}
`)

	require.NoError(t, s.ParseResults(context.Background()))
	assert.Equal(t, []string{"admin.example.com"}, store.upserts,
		"out-of-scope hostnames never reach the store")
}

func TestAmassParseResultsMissingFile(t *testing.T) {
	s := NewAmassScan(testConfig(t, &fakeDB{}, &fakeExecutor{}))
	require.Error(t, s.ParseResults(context.Background()),
		"a results file that cannot be opened is fatal to the task")
}

func TestAmassRunReadsTargetFile(t *testing.T) {
	exec := &fakeExecutor{}
	store := &fakeDB{}
	cfg := testConfig(t, store, exec)

	targetFile := filepath.Join(t.TempDir(), "targets.txt")
	require.NoError(t, os.WriteFile(targetFile, []byte("example.com\n\n# comment\nexample.org\n"), 0o640))
	cfg.TargetFile = targetFile

	s := NewAmassScan(cfg)
	// The executor is fake, so no results file appears; parse fails and
	// that is fine - this test only cares about the invocation.
	_ = s.Run(context.Background())

	require.Len(t, exec.calls, 1)
	assert.Equal(t, "amass", exec.calls[0].Name)
	assert.Contains(t, exec.calls[0].Args, "-json")

	written, err := os.ReadFile(filepath.Join(s.ResultsSubfolder(), "targets.txt"))
	require.NoError(t, err)
	assert.Equal(t, "example.com\nexample.org\n", string(written),
		"blank lines and comments are dropped from the seed list")
}

func TestMasscanRunEmptyAddressList(t *testing.T) {
	exec := &fakeExecutor{}
	s := NewMasscanScan(testConfig(t, &fakeDB{}, exec))

	require.NoError(t, s.Run(context.Background()))
	assert.Empty(t, exec.calls, "no recorded addresses means no masscan invocation")
}

func TestMasscanParseResults(t *testing.T) {
	store := &fakeDB{}
	s := NewMasscanScan(testConfig(t, store, &fakeExecutor{}))

	content := `[
{ "ip": "10.0.0.5", "ports": [ {"port": 443, "proto": "tcp", "status": "open"} ] },
garbage line,
{ "ip": "10.0.0.6", "ports": [ {"port": 22, "proto": "tcp", "status": "open"}, {"port": 80, "proto": "tcp", "status": "open"} ] }
]
`
	writeOutput(t, s, content)

	require.NoError(t, s.ParseResults(context.Background()))

	assert.Equal(t, []string{"10.0.0.5", "10.0.0.6"}, store.upserts)
	require.Len(t, store.added, 3)
	port, ok := store.added[0].(*db.Port)
	require.True(t, ok)
	assert.Equal(t, 443, port.Number)
	assert.Equal(t, "tcp", port.Protocol)
	assert.Equal(t, "open", port.Status)
}

func TestMasscanCommandHonorsOptions(t *testing.T) {
	exec := &fakeExecutor{}
	store := &fakeDB{addresses: []string{"10.0.0.5"}}
	cfg := testConfig(t, store, exec)
	cfg.Options = map[string]any{"masscan.rate": "1000", "masscan.ports": "80,443"}

	s := NewMasscanScan(cfg)
	_ = s.Run(context.Background())

	require.Len(t, exec.calls, 1)
	assert.Contains(t, exec.calls[0].Args, "1000")
	assert.Contains(t, exec.calls[0].Args, "80,443")
}

func TestMasscanRequires(t *testing.T) {
	s := NewMasscanScan(testConfig(t, &fakeDB{}, &fakeExecutor{}))
	assert.Equal(t, []string{"amass"}, s.Requires())
}

func TestNmapParseResults(t *testing.T) {
	store := &fakeDB{}
	s := NewNmapScan(testConfig(t, store, &fakeExecutor{}))

	content := "# Nmap 7.94 scan initiated\n" +
		"Host: 10.0.0.5 ()\tStatus: Up\n" +
		"Host: 10.0.0.5 ()\tPorts: 22/open/tcp//ssh//OpenSSH 8.2p1/, 80/open/tcp//http//nginx 1.18.0/, mangled-entry\n" +
		"# Nmap done\n"
	writeOutput(t, s, content)

	require.NoError(t, s.ParseResults(context.Background()))

	assert.Equal(t, []string{"10.0.0.5"}, store.upserts)
	var ports []*db.Port
	var services []*db.Service
	for _, record := range store.added {
		switch row := record.(type) {
		case *db.Port:
			ports = append(ports, row)
		case *db.Service:
			services = append(services, row)
		}
	}
	require.Len(t, ports, 2, "the mangled entry is skipped")
	require.Len(t, services, 2)
	assert.Equal(t, 22, ports[0].Number)
	assert.Equal(t, "ssh", services[0].Name)
	assert.Equal(t, "OpenSSH 8.2p1", services[0].Product)
	assert.Equal(t, "nginx 1.18.0", services[1].Product)
}

func TestNmapRequirementsCarryMinimumVersion(t *testing.T) {
	s := NewNmapScan(testConfig(t, &fakeDB{}, &fakeExecutor{}))
	reqs := s.Requirements()
	require.Len(t, reqs, 1)
	assert.Equal(t, "nmap", reqs[0].Tool)
	assert.NotEmpty(t, reqs[0].MinVersion)
}
