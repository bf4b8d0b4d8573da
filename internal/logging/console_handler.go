package logging

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

// infoFieldLimit caps how many attributes an INFO line expands below the header.
const infoFieldLimit = 8

// consoleHandler writes one header line per record followed by an indented
// field list. Component, object, step and severity go into the header; INFO
// lines skip fields whose value has not changed since the previous line
// about the same subject.
type consoleHandler struct {
	shared    *consoleState
	level     *slog.LevelVar
	attrs     []slog.Attr
	groups    []string
	addSource bool
}

type consoleState struct {
	mu   sync.Mutex
	w    io.Writer
	seen map[string]map[string]string
}

type field struct {
	key   string
	value slog.Value
}

// subject is what a line is about.
type subject struct {
	component string
	object    string
	step      string
	severity  string
}

func (s subject) key() string {
	return s.component + "|" + s.object + "|" + s.step
}

func (s subject) String() string {
	var b strings.Builder
	if s.component != "" {
		b.WriteString(" [" + s.component + "]")
	}
	switch {
	case s.object != "" && s.step != "":
		b.WriteString(" Object #" + s.object + " (" + s.step + ")")
	case s.object != "":
		b.WriteString(" Object #" + s.object)
	case s.step != "":
		b.WriteString(" " + s.step)
	}
	return b.String()
}

func newConsoleHandler(w io.Writer, lvl *slog.LevelVar, addSource bool) slog.Handler {
	return &consoleHandler{
		shared:    &consoleState{w: w, seen: make(map[string]map[string]string)},
		level:     lvl,
		addSource: addSource,
	}
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *consoleHandler) Handle(_ context.Context, record slog.Record) error {
	if !h.Enabled(context.Background(), record.Level) {
		return nil
	}
	ts := record.Time
	if ts.IsZero() {
		ts = time.Now()
	}

	var all []field
	for _, attr := range h.attrs {
		flatten(&all, h.groups, attr)
	}
	record.Attrs(func(attr slog.Attr) bool {
		flatten(&all, h.groups, attr)
		return true
	})
	all = lastWins(all)

	var subj subject
	header := map[string]*string{
		FieldComponent: &subj.component,
		FieldObjectID:  &subj.object,
		FieldStep:      &subj.step,
		FieldSeverity:  &subj.severity,
	}
	body := make([]field, 0, len(all))
	for _, f := range all {
		if dst, ok := header[f.key]; ok {
			if *dst == "" {
				*dst = attrString(f.value)
			}
			continue
		}
		body = append(body, f)
	}

	var b strings.Builder
	b.WriteString(formatTimestamp(ts))
	b.WriteByte(' ')
	b.WriteString(levelLabel(record.Level))
	b.WriteString(subj.String())
	message := strings.TrimSpace(record.Message)
	if message == "" {
		message = "(no message)"
	}
	b.WriteString(" - " + message)
	if subj.severity != "" {
		b.WriteString(" => " + subj.severity)
	}
	if src := record.Source(); h.addSource && src != nil {
		b.WriteString(" [" + filepath.Base(src.File) + ":" + strconv.Itoa(src.Line) + "]")
	}
	b.WriteByte('\n')

	h.shared.mu.Lock()
	defer h.shared.mu.Unlock()
	if record.Level < slog.LevelInfo {
		for _, f := range all {
			b.WriteString("    " + f.key + ": " + formatValue(f.value) + "\n")
		}
	} else {
		h.writeInfoFields(&b, subj.key(), record.Level, body)
	}
	_, err := io.WriteString(h.shared.w, b.String())
	return err
}

// writeInfoFields must be called with the shared lock held.
func (h *consoleHandler) writeInfoFields(b *strings.Builder, key string, level slog.Level, body []field) {
	seen := h.shared.seen[key]
	if seen == nil {
		seen = make(map[string]string)
		h.shared.seen[key] = seen
	}
	shown, hidden := 0, 0
	for _, f := range body {
		if f.key == FieldRequestID || f.key == FieldEventType {
			continue
		}
		if shown >= infoFieldLimit {
			hidden++
			continue
		}
		label := strings.ReplaceAll(f.key, "_", " ")
		value := formatValue(f.value)
		// Warnings and errors always show their full context.
		if prev, ok := seen[label]; ok && prev == value && level <= slog.LevelInfo {
			continue
		}
		seen[label] = value
		b.WriteString("    - " + label + ": " + value + "\n")
		shown++
	}
	switch hidden {
	case 0:
	case 1:
		b.WriteString("    + 1 more field hidden\n")
	default:
		b.WriteString("    + " + strconv.Itoa(hidden) + " more fields hidden\n")
	}
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.attrs = append(append([]slog.Attr(nil), h.attrs...), attrs...)
	return &next
}

func (h *consoleHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	next.groups = append(append([]string(nil), h.groups...), name)
	return &next
}

// flatten appends attr to dst, expanding groups into dotted keys.
func flatten(dst *[]field, prefix []string, attr slog.Attr) {
	if attr.Equal(slog.Attr{}) {
		return
	}
	attr.Value = attr.Value.Resolve()
	if attr.Value.Kind() == slog.KindGroup {
		inner := prefix
		if attr.Key != "" {
			inner = append(append([]string(nil), prefix...), attr.Key)
		}
		for _, a := range attr.Value.Group() {
			flatten(dst, inner, a)
		}
		return
	}
	key := attr.Key
	if len(prefix) > 0 {
		key = strings.Join(append(append([]string(nil), prefix...), key), ".")
	}
	if key == "" {
		return
	}
	*dst = append(*dst, field{key: key, value: attr.Value})
}

// lastWins keeps the first position of each key with its latest value.
func lastWins(fields []field) []field {
	pos := make(map[string]int, len(fields))
	out := fields[:0]
	for _, f := range fields {
		if i, ok := pos[f.key]; ok {
			out[i].value = f.value
			continue
		}
		pos[f.key] = len(out)
		out = append(out, f)
	}
	return out
}
