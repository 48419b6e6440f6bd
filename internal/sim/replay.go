package sim

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"go.uber.org/zap"

	"truncfee/internal/model"
)

// JsonlSource streams tick events from a JSONL file. Malformed lines are
// logged and skipped rather than aborting the replay.
type JsonlSource struct {
	file    *os.File
	scanner *bufio.Scanner
	logger  *zap.Logger
}

func NewJsonlSource(path string, logger *zap.Logger) (*JsonlSource, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}

	scanner := bufio.NewScanner(file)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 10*1024*1024)

	return &JsonlSource{
		file:    file,
		scanner: scanner,
		logger:  logger,
	}, nil
}

func (s *JsonlSource) Close() error {
	return s.file.Close()
}

// Next implements EventSource.
func (s *JsonlSource) Next() (model.TickEvent, bool) {
	for s.scanner.Scan() {
		line := bytes.TrimSpace(s.scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var ev model.TickEvent
		if err := json.Unmarshal(line, &ev); err != nil {
			s.logger.Warn("decode tick event", zap.Error(err))
			continue
		}
		return ev, true
	}
	return model.TickEvent{}, false
}
