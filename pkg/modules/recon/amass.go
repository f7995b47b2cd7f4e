// pkg/modules/recon/amass.go
// Package recon provides the scans that seed and enumerate the target
// surface: subdomain enumeration and port discovery.
package recon

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/reconpipe/reconpipe/pkg/db"
	"github.com/reconpipe/reconpipe/pkg/engine"
	"github.com/reconpipe/reconpipe/pkg/execx"
	"github.com/reconpipe/reconpipe/pkg/netutil"
	"github.com/reconpipe/reconpipe/pkg/task"
	"github.com/reconpipe/reconpipe/pkg/tools"
)

// AmassScan wraps amass subdomain enumeration. It is the pipeline's seed
// scan: it reads the operator-supplied target file and populates the store
// with every in-scope subdomain and its resolved addresses.
type AmassScan struct {
	task.Base
}

// NewAmassScan builds the scan for one pipeline stage.
func NewAmassScan(cfg task.Config) *AmassScan {
	s := &AmassScan{}
	s.Base = task.NewBase("amass", "amass-results", "amass.json", cfg)
	return s
}

// Requirements names the external tools amass enumeration depends on.
func (s *AmassScan) Requirements() []tools.Requirement {
	return tools.Require("amass")
}

// Requires declares no upstream scans; amass starts from the seed file.
func (s *AmassScan) Requires() []string { return nil }

// Run enumerates subdomains for the seed domains and parses the results.
func (s *AmassScan) Run(ctx context.Context) error {
	return s.Execute(ctx, s, s.gatherTargets, s.command)
}

// gatherTargets reads the seed domains from the configured target file.
func (s *AmassScan) gatherTargets(context.Context) ([]string, error) {
	f, err := os.Open(s.TargetFile)
	if err != nil {
		return nil, fmt.Errorf("open target file: %w", err)
	}
	defer f.Close()

	var targets []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		targets = append(targets, line)
	}
	return targets, scanner.Err()
}

func (s *AmassScan) command(targets []string) (execx.Command, error) {
	domainFile, err := s.WriteTargetsFile(targets)
	if err != nil {
		return execx.Command{}, err
	}
	return execx.Command{
		Name: "amass",
		Args: []string{
			"enum", "-active", "-ip", "-brute",
			"-min-for-recursive", "3",
			"-df", domainFile,
			"-json", s.OutputFile(),
		},
	}, nil
}

// amassEntry is one JSON line of amass -json output.
type amassEntry struct {
	Name      string `json:"name"`
	Addresses []struct {
		IP string `json:"ip"`
	} `json:"addresses"`
}

// ParseResults normalizes amass's JSON-lines output. Hostnames outside the
// scope policy are dropped before anything is persisted; malformed lines are
// skipped without aborting the file.
func (s *AmassScan) ParseResults(_ context.Context) error {
	f, err := os.Open(s.OutputFile())
	if err != nil {
		s.Fail()
		return fmt.Errorf("amass: open results: %w", err)
	}
	defer f.Close()

	logger := s.Logger()
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var entry amassEntry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			logger.Debug().Err(err).Msg("skipping unparseable amass line")
			continue
		}
		if entry.Name == "" {
			continue
		}
		if !s.Scope.IsInScope(entry.Name) {
			logger.Debug().Str("hostname", entry.Name).Msg("hostname out of scope, dropping")
			continue
		}

		target, err := s.DB.GetOrCreateTargetByIPOrHostname(entry.Name)
		if err != nil {
			s.Fail()
			return fmt.Errorf("amass: %w", err)
		}
		for _, addr := range entry.Addresses {
			row := db.IPAddress{TargetID: target.ID}
			switch netutil.IPVersion(addr.IP) {
			case "4":
				row.IPv4Address = addr.IP
			case "6":
				row.IPv6Address = addr.IP
			default:
				continue
			}
			if err := s.DB.Add(&row); err != nil {
				s.Fail()
				return fmt.Errorf("amass: %w", err)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		s.Fail()
		return fmt.Errorf("amass: read results: %w", err)
	}

	s.MarkParsed()
	return nil
}

func init() {
	engine.Register("amass", "recon/amass", func(cfg task.Config) (task.Scan, error) {
		return NewAmassScan(cfg), nil
	})
}
