// pkg/modules/web/subdomain_takeover.go
// Subdomain takeover detection via two independent tools, subjack and
// tko-subs. Both scans read the same hostname list and flag targets whose
// dangling DNS makes them claimable.
package web

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cast"

	"github.com/reconpipe/reconpipe/pkg/engine"
	"github.com/reconpipe/reconpipe/pkg/execx"
	"github.com/reconpipe/reconpipe/pkg/task"
	"github.com/reconpipe/reconpipe/pkg/tools"
)

// SubjackScan wraps subjack takeover detection.
type SubjackScan struct {
	task.Base
}

// NewSubjackScan builds the scan for one pipeline stage.
func NewSubjackScan(cfg task.Config) *SubjackScan {
	s := &SubjackScan{}
	s.Base = task.NewBase("subjack", "subjack-results", "subjack.txt", cfg)
	return s
}

// Requirements names the external tools takeover detection depends on.
func (s *SubjackScan) Requirements() []tools.Requirement {
	return tools.Require("subjack")
}

// Requires runs after the scope-filtered web target list exists.
func (s *SubjackScan) Requires() []string { return []string{"gather-web-targets"} }

// Run checks every known hostname for takeover and parses the results.
func (s *SubjackScan) Run(ctx context.Context) error {
	return s.Execute(ctx, s, s.gatherTargets, s.command)
}

func (s *SubjackScan) gatherTargets(context.Context) ([]string, error) {
	return s.DB.GetAllHostnames()
}

func (s *SubjackScan) command(targets []string) (execx.Command, error) {
	targetFile, err := s.WriteTargetsFile(targets)
	if err != nil {
		return execx.Command{}, err
	}
	threads := cast.ToInt(s.Option("subjack.threads", 100))
	if threads <= 0 {
		threads = 100
	}
	timeout := cast.ToInt(s.Option("subjack.timeout", 30))
	if timeout <= 0 {
		timeout = 30
	}

	return execx.Command{
		Name: "subjack",
		Args: []string{
			"-w", targetFile,
			"-t", cast.ToString(threads),
			"-timeout", cast.ToString(timeout),
			"-o", s.OutputFile(),
			"-ssl", "-v",
		},
	}, nil
}

// ParseResults reads subjack's verdict lines:
//
//	[Vulnerable] sub.example.com:8080
//	[Not Vulnerable] other.example.com
//
// Lines in neither form are skipped. Every mentioned host is upserted; a
// vulnerable verdict additionally flags the target.
func (s *SubjackScan) ParseResults(_ context.Context) error {
	f, err := os.Open(s.OutputFile())
	if err != nil {
		s.Fail()
		return fmt.Errorf("subjack: open results: %w", err)
	}
	defer f.Close()

	logger := s.Logger()
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		var vulnerable bool
		var rest string
		switch {
		case strings.HasPrefix(line, "[Vulnerable]"):
			vulnerable = true
			rest = strings.TrimPrefix(line, "[Vulnerable]")
		case strings.HasPrefix(line, "[Not Vulnerable]"):
			rest = strings.TrimPrefix(line, "[Not Vulnerable]")
		default:
			if line != "" {
				logger.Debug().Str("line", line).Msg("skipping unparseable subjack line")
			}
			continue
		}

		hostname := strings.TrimSpace(rest)
		if idx := strings.LastIndex(hostname, ":"); idx != -1 {
			hostname = hostname[:idx]
		}
		if hostname == "" {
			continue
		}

		target, err := s.DB.GetOrCreateTargetByIPOrHostname(hostname)
		if err != nil {
			s.Fail()
			return fmt.Errorf("subjack: %w", err)
		}
		if vulnerable {
			target.VulnToSubTakeover = true
		}
		if err := s.DB.Add(target); err != nil {
			s.Fail()
			return fmt.Errorf("subjack: %w", err)
		}
	}
	if err := scanner.Err(); err != nil {
		s.Fail()
		return fmt.Errorf("subjack: read results: %w", err)
	}

	s.MarkParsed()
	return nil
}

// TKOSubsScan wraps tko-subs takeover detection.
type TKOSubsScan struct {
	task.Base
}

// NewTKOSubsScan builds the scan for one pipeline stage.
func NewTKOSubsScan(cfg task.Config) *TKOSubsScan {
	s := &TKOSubsScan{}
	s.Base = task.NewBase("tko-subs", "tkosubs-results", "tkosubs.csv", cfg)
	return s
}

// Requirements names the external tools takeover detection depends on.
func (s *TKOSubsScan) Requirements() []tools.Requirement {
	return tools.Require("tko-subs")
}

// Requires runs after the scope-filtered web target list exists.
func (s *TKOSubsScan) Requires() []string { return []string{"gather-web-targets"} }

// Run checks every known hostname for takeover and parses the results.
func (s *TKOSubsScan) Run(ctx context.Context) error {
	return s.Execute(ctx, s, s.gatherTargets, s.command)
}

func (s *TKOSubsScan) gatherTargets(context.Context) ([]string, error) {
	return s.DB.GetAllHostnames()
}

func (s *TKOSubsScan) command(targets []string) (execx.Command, error) {
	targetFile, err := s.WriteTargetsFile(targets)
	if err != nil {
		return execx.Command{}, err
	}
	return execx.Command{
		Name: "tko-subs",
		Args: []string{
			"-domains", targetFile,
			"-output", s.OutputFile(),
		},
	}, nil
}

// ParseResults reads tko-subs's CSV report
// (Domain,Cname,Provider,IsVulnerable,IsTakenOver,Response), skipping the
// header and any row that does not carry the expected fields.
func (s *TKOSubsScan) ParseResults(_ context.Context) error {
	f, err := os.Open(s.OutputFile())
	if err != nil {
		s.Fail()
		return fmt.Errorf("tko-subs: open results: %w", err)
	}
	defer f.Close()

	logger := s.Logger()
	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			logger.Debug().Err(err).Msg("skipping unparseable tko-subs row")
			continue
		}
		if len(record) < 4 || record[0] == "Domain" {
			continue
		}

		domain := strings.TrimSpace(record[0])
		if domain == "" {
			continue
		}

		target, err := s.DB.GetOrCreateTargetByIPOrHostname(domain)
		if err != nil {
			s.Fail()
			return fmt.Errorf("tko-subs: %w", err)
		}
		if strings.EqualFold(strings.TrimSpace(record[3]), "true") {
			target.VulnToSubTakeover = true
		}
		if err := s.DB.Add(target); err != nil {
			s.Fail()
			return fmt.Errorf("tko-subs: %w", err)
		}
	}

	s.MarkParsed()
	return nil
}

func init() {
	engine.Register("subjack", "web/subdomain-takeover", func(cfg task.Config) (task.Scan, error) {
		return NewSubjackScan(cfg), nil
	})
	engine.Register("tko-subs", "web/subdomain-takeover", func(cfg task.Config) (task.Scan, error) {
		return NewTKOSubsScan(cfg), nil
	})
}
