// pkg/modules/web/web_test.go
package web

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
		Tools: tools.NewState(map[string]tools.ToolInfo{
			"subjack": {Installed: true},
			"tko-subs": {Installed: true},
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

// flaggedTargets extracts the hostnames Add persisted with the takeover flag.
func flaggedTargets(records []any) (flagged, clean []string) {
	for _, record := range records {
		target, ok := record.(*db.Target)
		if !ok {
			continue
		}
		if target.VulnToSubTakeover {
			flagged = append(flagged, target.Hostname)
		} else {
			clean = append(clean, target.Hostname)
		}
	}
	return flagged, clean
}

func TestSubjackDerivedPaths(t *testing.T) {
	cfg := testConfig(t, &fakeDB{}, &fakeExecutor{})
	s := NewSubjackScan(cfg)

	assert.Equal(t, filepath.Join(cfg.ResultsDir, "subjack-results"), s.ResultsSubfolder())
	assert.Equal(t, filepath.Join(cfg.ResultsDir, "subjack-results", "subjack.txt"), s.OutputFile())
	assert.Equal(t, []string{"gather-web-targets"}, s.Requires())
}

func TestSubjackRunEmptyHostnameList(t *testing.T) {
	exec := &fakeExecutor{}
	s := NewSubjackScan(testConfig(t, &fakeDB{}, exec))

	require.NoError(t, s.Run(context.Background()))
	assert.Empty(t, exec.calls, "no known hostnames means no subjack invocation")
	assert.False(t, s.Output().Exists())
}

func TestSubjackCommandWritesTargetFile(t *testing.T) {
	exec := &fakeExecutor{}
	store := &fakeDB{hostnames: []string{"one.example.com", "two.example.com"}}
	s := NewSubjackScan(testConfig(t, store, exec))

	// Parse fails because the fake executor writes nothing; the invocation
	// is what matters here.
	_ = s.Run(context.Background())

	require.Len(t, exec.calls, 1)
	assert.Equal(t, "subjack", exec.calls[0].Name)
	assert.Contains(t, exec.calls[0].Args, "-ssl")

	data, err := os.ReadFile(filepath.Join(s.ResultsSubfolder(), "targets.txt"))
	require.NoError(t, err)
	assert.Equal(t, "one.example.com\ntwo.example.com\n", string(data))
}

func TestSubjackParseResults(t *testing.T) {
	store := &fakeDB{}
	s := NewSubjackScan(testConfig(t, store, &fakeExecutor{}))

	writeOutput(t, s, strings.Join([]string{
		"[Vulnerable] dangling.example.com:8080",
		"[Not Vulnerable] healthy.example.com",
		"some noise the tool printed",
		"[Vulnerable] orphan.example.com",
		"",
	}, "\n"))

	require.NoError(t, s.ParseResults(context.Background()))

	flagged, clean := flaggedTargets(store.added)
	assert.Equal(t, []string{"dangling.example.com", "orphan.example.com"}, flagged,
		"port suffixes are stripped before persisting")
	assert.Equal(t, []string{"healthy.example.com"}, clean)
	assert.Equal(t, task.StatusParsed, s.Status())
}

func TestSubjackParseResultsMissingFile(t *testing.T) {
	s := NewSubjackScan(testConfig(t, &fakeDB{}, &fakeExecutor{}))
	require.Error(t, s.ParseResults(context.Background()))
	assert.Equal(t, task.StatusFailed, s.Status())
}

func TestTKOSubsParseResults(t *testing.T) {
	store := &fakeDB{}
	s := NewTKOSubsScan(testConfig(t, store, &fakeExecutor{}))

	writeOutput(t, s, strings.Join([]string{
		"Domain,Cname,Provider,IsVulnerable,IsTakenOver,Response",
		"dangling.example.com,gone.s3.amazonaws.com,amazon,true,false,NoSuchBucket",
		"healthy.example.com,cdn.example.net,fastly,false,false,",
		"short-row",
		"orphan.example.com,old.github.io,github,TRUE,false,404",
		"",
	}, "\n"))

	require.NoError(t, s.ParseResults(context.Background()))

	flagged, clean := flaggedTargets(store.added)
	assert.Equal(t, []string{"dangling.example.com", "orphan.example.com"}, flagged,
		"the IsVulnerable column is parsed case-insensitively")
	assert.Equal(t, []string{"healthy.example.com"}, clean)
}

func TestTKOSubsCommand(t *testing.T) {
	exec := &fakeExecutor{}
	store := &fakeDB{hostnames: []string{"one.example.com"}}
	s := NewTKOSubsScan(testConfig(t, store, exec))

	_ = s.Run(context.Background())

	require.Len(t, exec.calls, 1)
	assert.Equal(t, "tko-subs", exec.calls[0].Name)
	assert.Contains(t, exec.calls[0].Args, "-domains")
}

func TestGatherWebTargetsScopeFilter(t *testing.T) {
	store := &fakeDB{
		hostnames: []string{"admin.example.com", "www.example.com"},
		addresses: []string{"10.0.0.5"},
	}
	cfg := testConfig(t, store, &fakeExecutor{})

	policy, err := scope.ParsePolicy(strings.NewReader(`{
  "target": {"scope": {
    "exclude": [{"host": "example\\.com$"}],
    "include": [{"host": "^admin\\.example\\.com$"}]
  }}
}`))
	require.NoError(t, err)
	cfg.Scope = policy

	s := NewGatherWebTargets(cfg)
	require.NoError(t, s.Run(context.Background()))

	data, err := os.ReadFile(s.OutputFile())
	require.NoError(t, err)
	assert.Equal(t, "admin.example.com\n10.0.0.5\n", string(data),
		"out-of-scope hostnames are dropped; raw addresses pass through")
	assert.Equal(t, task.StatusParsed, s.Status())
}

func TestGatherWebTargetsIdempotent(t *testing.T) {
	store := &fakeDB{hostnames: []string{"one.example.com"}}
	s := NewGatherWebTargets(testConfig(t, store, &fakeExecutor{}))

	require.NoError(t, s.Run(context.Background()))
	first, err := os.ReadFile(s.OutputFile())
	require.NoError(t, err)

	store.hostnames = append(store.hostnames, "two.example.com")
	require.NoError(t, s.Run(context.Background()))
	second, err := os.ReadFile(s.OutputFile())
	require.NoError(t, err)

	assert.Equal(t, first, second, "an existing artifact suppresses regeneration")
}
