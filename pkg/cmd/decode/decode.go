package decode

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/mpapenbr/f1-livetiming-go/log"
	"github.com/mpapenbr/f1-livetiming-go/pkg/cmd/util"
	"github.com/mpapenbr/f1-livetiming-go/pkg/livetiming"
	"github.com/mpapenbr/f1-livetiming-go/pkg/signalr"
)

const maxLineSize = 32 << 20

var strict bool

func NewDecodeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "decode [file]",
		Short: "Decode recorded live timing data",
		Long: `Reads recorded data line by line and prints the resulting events as json.
A line is either a [topic, payload, timestamp] triple or a raw frame as received
from the socket. Reads stdin if no file or "-" is given.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := util.SetupLogger(); err != nil {
				return err
			}
			in := cmd.InOrStdin()
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}
			return decode(in, cmd.OutOrStdout(), strict)
		},
	}
	cmd.Flags().BoolVar(&strict, "strict", false,
		"stop on malformed payloads instead of logging them")
	return cmd
}

func decode(in io.Reader, out io.Writer, strictMode bool) error {
	runner := livetiming.NewRunner(nil, livetiming.WithStrict(strictMode))
	enc := json.NewEncoder(out)
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		triples, err := parseLine(line)
		if err != nil {
			log.Warn("Skipping invalid line", log.Int("line", lineNo), log.ErrorField(err))
			continue
		}
		if err := runner.Feed(triples); err != nil {
			return fmt.Errorf("line %d: %w", lineNo, err)
		}
		for {
			ev, ok := runner.Poll()
			if !ok {
				break
			}
			if err := enc.Encode(ev); err != nil {
				return err
			}
		}
	}
	return scanner.Err()
}

func parseLine(line []byte) ([]livetiming.Triple, error) {
	switch line[0] {
	case '[':
		var t livetiming.Triple
		if err := json.Unmarshal(line, &t); err != nil {
			return nil, err
		}
		return []livetiming.Triple{t}, nil
	case '{':
		msg := signalr.Message{Opcode: signalr.OpText, Raw: line}
		if err := json.Unmarshal(line, &msg.Frame); err != nil {
			return nil, err
		}
		if msg.KeepAlive() {
			return nil, nil
		}
		return livetiming.Triples(msg, time.Now()), nil
	default:
		return nil, fmt.Errorf("unexpected start %q", line[0])
	}
}
