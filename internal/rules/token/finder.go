// Package token implements the path-resolution grammar shared by the rules
// engine's condition matchers and its consequence template renderer (spec
// §4.5). A Finder is bound to one event and resolves `~`-prefixed runtime
// tokens, `~state.<owner>/<path>` shared-state reads, and otherwise a
// dotted lookup into the event's own data tree.
package token

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/corehub/sdk/internal/sharedstate"
	"github.com/corehub/sdk/internal/types"
)

// StateReader is the shared-state read surface a Finder needs. *hub.Hub
// satisfies it directly; this package never imports internal/hub to avoid
// a cycle (the hub's rules preprocessor is constructed with the hub itself
// as the StateReader).
type StateReader interface {
	SharedState(ns sharedstate.Namespace, owner string, atSeq uint64, barrier sharedstate.Barrier) sharedstate.Result
}

const sdkVersion = "1.0.0"

// Finder resolves paths against one event's universe: its own metadata and
// data tree, and shared state at the event's seq.
type Finder struct {
	event *types.Event
	state StateReader
}

// New binds a Finder to event, reading shared state through state.
func New(event *types.Event, state StateReader) *Finder {
	return &Finder{event: event, state: state}
}

// Resolve looks up path and reports whether it was found. A miss returns
// (Null, false), distinguishing "absent" from "present and null" for the
// nx/ex/ne matchers.
func (f *Finder) Resolve(path string) (types.Value, bool) {
	switch path {
	case "~type":
		return types.String(string(f.event.Type)), true
	case "~source":
		return types.String(string(f.event.Source)), true
	case "~timestamp":
		return types.Int(f.event.Timestamp.UnixMilli()), true
	case "~id":
		return types.String(f.event.ID), true
	case "~sdkver":
		return types.String(sdkVersion), true
	}
	if rest, ok := strings.CutPrefix(path, "~state."); ok {
		owner, sub, ok := strings.Cut(rest, "/")
		if !ok {
			return types.Null(), false
		}
		result := f.state.SharedState(sharedstate.NamespaceStandard, owner, f.event.Seq, sharedstate.BarrierAny)
		if result.Status != sharedstate.StatusSet {
			return types.Null(), false
		}
		return types.FromMap(result.Value).Lookup(splitPath(sub))
	}
	return types.FromMap(f.event.Data()).Lookup(splitPath(path))
}

func splitPath(path string) []string {
	if path == "" {
		return nil
	}
	return strings.Split(path, ".")
}

// scanTokens finds every {% path %} or {% path | transform %} reference.
// A hand-rolled scanner is used instead of regexp so nested braces in path
// segments (none expected, but never assumed) can't confuse the matcher,
// and so unmatched "{%" is left verbatim rather than silently dropped.
func scanTokens(tmpl string) []tokenMatch {
	var out []tokenMatch
	i := 0
	for {
		start := strings.Index(tmpl[i:], "{%")
		if start < 0 {
			break
		}
		start += i
		end := strings.Index(tmpl[start:], "%}")
		if end < 0 {
			break
		}
		end += start
		body := strings.TrimSpace(tmpl[start+2 : end])
		out = append(out, tokenMatch{start: start, end: end + 2, body: body})
		i = end + 2
	}
	return out
}

type tokenMatch struct {
	start, end int
	body       string
}

// Render substitutes every {% path %} (optionally {% path | transform %})
// reference in tmpl with the string form of its resolved value, "" on miss.
// Pure function: no side effects, no mutation of the event.
func (f *Finder) Render(tmpl string) string {
	matches := scanTokens(tmpl)
	if len(matches) == 0 {
		return tmpl
	}
	var b strings.Builder
	cursor := 0
	for _, m := range matches {
		b.WriteString(tmpl[cursor:m.start])
		path, transform, _ := strings.Cut(m.body, "|")
		path = strings.TrimSpace(path)
		transform = strings.TrimSpace(transform)
		val, ok := f.Resolve(path)
		if !ok {
			cursor = m.end
			continue
		}
		b.WriteString(applyTransform(val, transform))
		cursor = m.end
	}
	b.WriteString(tmpl[cursor:])
	return b.String()
}

func applyTransform(v types.Value, transform string) string {
	switch transform {
	case "urlenc":
		return url.QueryEscape(v.String())
	case "int":
		if i, ok := v.AsInt(); ok {
			return strconv.FormatInt(i, 10)
		}
		if f, ok := v.AsFloat(); ok {
			return strconv.FormatInt(int64(f), 10)
		}
		return v.String()
	default:
		return v.String()
	}
}
