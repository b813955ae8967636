package subtitle

import (
	"bufio"
	"bytes"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Event is one dialogue line of an ASS script.
type Event struct {
	Style string
	Name  string
	Text  string
	Start time.Duration
	End   time.Duration
}

var defaultFormat = []string{"layer", "start", "end", "style", "name", "marginl", "marginr", "marginv", "effect", "text"}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ParseASS reads the Dialogue events of an ASS script in file order. Comment
// events and every other section are ignored. Text keeps override blocks and
// line break markers untouched.
func ParseASS(r io.Reader) ([]Event, error) {
	br := bufio.NewReader(r)
	if head, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
		br.Discard(len(utf8BOM))
	}

	scanner := bufio.NewScanner(br)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)

	var (
		events   []Event
		inEvents bool
		format   = defaultFormat
		lineNo   int
	)

	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r")
		trimmed := strings.TrimSpace(line)

		if strings.HasPrefix(trimmed, "[") && strings.HasSuffix(trimmed, "]") {
			inEvents = strings.EqualFold(trimmed, "[Events]")
			continue
		}

		if !inEvents {
			continue
		}

		kind, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}

		switch strings.TrimSpace(kind) {
		case "Format":
			format = parseFormat(value)
		case "Dialogue":
			ev, err := parseDialogue(format, value)
			if err != nil {
				return nil, errors.Wrapf(err, "line %d", lineNo)
			}
			events = append(events, ev)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to read subtitle script")
	}

	return events, nil
}

func parseFormat(value string) []string {
	fields := strings.Split(value, ",")
	format := make([]string, 0, len(fields))
	for _, f := range fields {
		format = append(format, strings.ToLower(strings.TrimSpace(f)))
	}
	return format
}

// parseDialogue splits a Dialogue value by the format. The last field takes
// the remainder of the line, commas included.
func parseDialogue(format []string, value string) (Event, error) {
	fields := strings.SplitN(strings.TrimLeft(value, " "), ",", len(format))
	if len(fields) != len(format) {
		return Event{}, errors.Errorf("dialogue has %d fields, format expects %d", len(fields), len(format))
	}

	var (
		ev  Event
		err error
	)

	for i, name := range format {
		v := fields[i]
		switch name {
		case "start":
			if ev.Start, err = ParseTimestamp(v); err != nil {
				return Event{}, err
			}
		case "end":
			if ev.End, err = ParseTimestamp(v); err != nil {
				return Event{}, err
			}
		case "style":
			ev.Style = strings.TrimSpace(v)
		case "name", "actor":
			ev.Name = strings.TrimSpace(v)
		case "text":
			ev.Text = v
		}
	}

	return ev, nil
}

// ParseTimestamp parses an ASS timestamp of the form H:MM:SS.cc.
func ParseTimestamp(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)

	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return 0, errors.Errorf("invalid timestamp %q", s)
	}

	hours, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, errors.Wrapf(err, "invalid timestamp %q", s)
	}

	minutes, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, errors.Wrapf(err, "invalid timestamp %q", s)
	}

	seconds, err := strconv.ParseFloat(parts[2], 64)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid timestamp %q", s)
	}

	d := time.Duration(hours)*time.Hour +
		time.Duration(minutes)*time.Minute +
		time.Duration(seconds*float64(time.Second)+0.5)

	// ASS carries centiseconds; drop float noise below a millisecond.
	return d.Round(time.Millisecond), nil
}
