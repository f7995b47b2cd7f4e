// pkg/modules/recon/masscan.go
package recon

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cast"

	"github.com/reconpipe/reconpipe/pkg/db"
	"github.com/reconpipe/reconpipe/pkg/engine"
	"github.com/reconpipe/reconpipe/pkg/execx"
	"github.com/reconpipe/reconpipe/pkg/task"
	"github.com/reconpipe/reconpipe/pkg/tools"
)

const (
	defaultMasscanRate  = 500
	defaultMasscanPorts = "1-65535"
)

// MasscanScan wraps masscan port discovery against every address the
// pipeline has recorded so far.
type MasscanScan struct {
	task.Base
}

// NewMasscanScan builds the scan for one pipeline stage.
func NewMasscanScan(cfg task.Config) *MasscanScan {
	s := &MasscanScan{}
	s.Base = task.NewBase("masscan", "masscan-results", "masscan.json", cfg)
	return s
}

// Requirements names the external tools port discovery depends on.
func (s *MasscanScan) Requirements() []tools.Requirement {
	return tools.Require("masscan")
}

// Requires pulls its addresses from amass's discoveries.
func (s *MasscanScan) Requires() []string { return []string{"amass"} }

// Run port-scans the recorded addresses and parses the results.
func (s *MasscanScan) Run(ctx context.Context) error {
	return s.Execute(ctx, s, s.gatherTargets, s.command)
}

func (s *MasscanScan) gatherTargets(context.Context) ([]string, error) {
	return s.DB.GetAllIPAddresses()
}

func (s *MasscanScan) command(targets []string) (execx.Command, error) {
	targetFile, err := s.WriteTargetsFile(targets)
	if err != nil {
		return execx.Command{}, err
	}
	rate := cast.ToInt(s.Option("masscan.rate", defaultMasscanRate))
	if rate <= 0 {
		rate = defaultMasscanRate
	}
	ports := cast.ToString(s.Option("masscan.ports", defaultMasscanPorts))

	return execx.Command{
		Name: "masscan",
		Args: []string{
			"-iL", targetFile,
			"-oJ", s.OutputFile(),
			"--rate", cast.ToString(rate),
			"-p", ports,
		},
	}, nil
}

// masscanEntry is one host record of masscan -oJ output.
type masscanEntry struct {
	IP    string `json:"ip"`
	Ports []struct {
		Port   int    `json:"port"`
		Proto  string `json:"proto"`
		Status string `json:"status"`
	} `json:"ports"`
}

// ParseResults walks masscan's JSON output one record per line, tolerating
// the array brackets, trailing commas, and any malformed entries.
func (s *MasscanScan) ParseResults(_ context.Context) error {
	f, err := os.Open(s.OutputFile())
	if err != nil {
		s.Fail()
		return fmt.Errorf("masscan: open results: %w", err)
	}
	defer f.Close()

	logger := s.Logger()
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		line = strings.TrimSuffix(line, ",")
		if line == "" || line == "[" || line == "]" {
			continue
		}

		var entry masscanEntry
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			logger.Debug().Err(err).Msg("skipping unparseable masscan line")
			continue
		}
		if entry.IP == "" || len(entry.Ports) == 0 {
			continue
		}

		target, err := s.DB.GetOrCreateTargetByIPOrHostname(entry.IP)
		if err != nil {
			s.Fail()
			return fmt.Errorf("masscan: %w", err)
		}
		for _, port := range entry.Ports {
			row := db.Port{
				TargetID: target.ID,
				Protocol: port.Proto,
				Number:   port.Port,
				Status:   port.Status,
			}
			if err := s.DB.Add(&row); err != nil {
				s.Fail()
				return fmt.Errorf("masscan: %w", err)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		s.Fail()
		return fmt.Errorf("masscan: read results: %w", err)
	}

	s.MarkParsed()
	return nil
}

func init() {
	engine.Register("masscan", "recon/masscan", func(cfg task.Config) (task.Scan, error) {
		return NewMasscanScan(cfg), nil
	})
}
