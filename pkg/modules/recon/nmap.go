// pkg/modules/recon/nmap.go
package recon

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/reconpipe/reconpipe/pkg/db"
	"github.com/reconpipe/reconpipe/pkg/engine"
	"github.com/reconpipe/reconpipe/pkg/execx"
	"github.com/reconpipe/reconpipe/pkg/task"
	"github.com/reconpipe/reconpipe/pkg/tools"
)

// NmapScan wraps nmap service/version detection over the addresses masscan
// found ports on. Output is kept in grepable format because it parses one
// host per line.
type NmapScan struct {
	task.Base
}

// NewNmapScan builds the scan for one pipeline stage.
func NewNmapScan(cfg task.Config) *NmapScan {
	s := &NmapScan{}
	s.Base = task.NewBase("nmap-services", "nmap-results", "nmap.gnmap", cfg)
	return s
}

// Requirements names the external tools service detection depends on. nmap
// grew -sV's current probe behavior in the 7.x line, so hold it to that.
func (s *NmapScan) Requirements() []tools.Requirement {
	return []tools.Requirement{{Tool: "nmap", MinVersion: ">= 7.0.0"}}
}

// Requires runs after port discovery so -sV has ports worth probing.
func (s *NmapScan) Requires() []string { return []string{"masscan"} }

// Run probes recorded addresses for service versions and parses the results.
func (s *NmapScan) Run(ctx context.Context) error {
	return s.Execute(ctx, s, s.gatherTargets, s.command)
}

func (s *NmapScan) gatherTargets(context.Context) ([]string, error) {
	return s.DB.GetAllIPAddresses()
}

func (s *NmapScan) command(targets []string) (execx.Command, error) {
	targetFile, err := s.WriteTargetsFile(targets)
	if err != nil {
		return execx.Command{}, err
	}
	return execx.Command{
		Name: "nmap",
		Args: []string{
			"-sV", "-T4", "--open",
			"-iL", targetFile,
			"-oG", s.OutputFile(),
		},
	}, nil
}

// ParseResults reads nmap's grepable output. Each "Host:" line carries a
// comma-separated port list of the form
//
//	22/open/tcp//ssh//OpenSSH 8.2p1/
//
// Entries that do not split into the expected fields are skipped.
func (s *NmapScan) ParseResults(_ context.Context) error {
	f, err := os.Open(s.OutputFile())
	if err != nil {
		s.Fail()
		return fmt.Errorf("nmap-services: open results: %w", err)
	}
	defer f.Close()

	logger := s.Logger()
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "Host:") || !strings.Contains(line, "Ports:") {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		address := fields[1]

		target, err := s.DB.GetOrCreateTargetByIPOrHostname(address)
		if err != nil {
			s.Fail()
			return fmt.Errorf("nmap-services: %w", err)
		}

		_, portSpec, _ := strings.Cut(line, "Ports:")
		for _, entry := range strings.Split(portSpec, ",") {
			parts := strings.Split(strings.TrimSpace(entry), "/")
			if len(parts) < 7 {
				logger.Debug().Str("entry", entry).Msg("skipping unparseable nmap port entry")
				continue
			}
			number, err := strconv.Atoi(parts[0])
			if err != nil {
				logger.Debug().Str("entry", entry).Msg("skipping nmap port entry with bad port number")
				continue
			}

			port := db.Port{
				TargetID: target.ID,
				Number:   number,
				Status:   parts[1],
				Protocol: parts[2],
			}
			if err := s.DB.Add(&port); err != nil {
				s.Fail()
				return fmt.Errorf("nmap-services: %w", err)
			}

			if name := parts[4]; name != "" {
				service := db.Service{
					TargetID: target.ID,
					Port:     number,
					Name:     name,
					Product:  strings.TrimSpace(parts[6]),
				}
				if err := s.DB.Add(&service); err != nil {
					s.Fail()
					return fmt.Errorf("nmap-services: %w", err)
				}
			}
		}
	}
	if err := scanner.Err(); err != nil {
		s.Fail()
		return fmt.Errorf("nmap-services: read results: %w", err)
	}

	s.MarkParsed()
	return nil
}

func init() {
	engine.Register("nmap-services", "recon/nmap", func(cfg task.Config) (task.Scan, error) {
		return NewNmapScan(cfg), nil
	})
}
