package editmodel

import (
	"net/url"
	"strings"

	"github.com/metavis/renderengine/internal/xerrors"
)

// ParsedURI is the decomposed form of an AssetReference's URI.
type ParsedURI struct {
	Scheme string
	Path   string          // file: path, or ligm: kind
	Query  url.Values
}

// Parse decomposes an asset URI of the form scheme://path[?query] or
// file:<path>. Recognized schemes are "file", "ligm", and any
// decoder-specific media scheme (accepted but not interpreted here).
func Parse(uri string) (ParsedURI, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return ParsedURI{}, xerrors.Asset("malformed asset URI", map[string]any{"uri": uri, "cause": err.Error()})
	}
	if u.Scheme == "" {
		return ParsedURI{}, xerrors.Asset("asset URI missing scheme", map[string]any{"uri": uri})
	}
	path := u.Path
	if u.Opaque != "" {
		// "file:<path>" form (no //) lands in Opaque rather than Path.
		path = u.Opaque
	} else if u.Host != "" {
		// "ligm://video/smpte_bars" lands Host="video", Path="/smpte_bars".
		path = u.Host + u.Path
	}
	return ParsedURI{Scheme: u.Scheme, Path: strings.TrimPrefix(path, "/"), Query: u.Query()}, nil
}

// LigmKindOf extracts the LigmKind from a parsed "ligm:" URI.
func (p ParsedURI) LigmKindOf() LigmKind { return LigmKind(p.Path) }
