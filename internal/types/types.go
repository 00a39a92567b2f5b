// Package types holds the data model shared by every pipeline component:
// constructs discovered by the parser, references discovered by the analyzers,
// and the corpus-identity primitives used for cache keys.
package types

import (
	"sort"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
)

// ConstructKind tags the kind of named definition a Construct represents.
type ConstructKind uint8

const (
	KindModule ConstructKind = iota
	KindClass
	KindFunction
	KindMethod
)

// String returns the lowercase name of the kind.
func (k ConstructKind) String() string {
	switch k {
	case KindModule:
		return "module"
	case KindClass:
		return "class"
	case KindFunction:
		return "function"
	case KindMethod:
		return "method"
	default:
		return "unknown"
	}
}

// ByteRange is an exact, half-open [Start, End) byte offset range into a
// file's raw bytes. It is never a code-point or rune index.
type ByteRange struct {
	Start int
	End   int
}

// Len returns the number of bytes the range spans.
func (r ByteRange) Len() int { return r.End - r.Start }

// DocstringInfo describes a construct's existing docstring, retaining both the
// canonical normalized text and the raw literal details needed to re-emit a
// faithful edit (quote style, prefix, indentation).
type DocstringInfo struct {
	// Text is the dequoted, dedented, trailing-whitespace-trimmed content.
	Text string
	// RawQuote is one of `"""`, `'''`, `"`, `'`.
	RawQuote string
	// Prefix holds any raw/format/byte string prefix (e.g. "r", "rb", "f"),
	// preserved verbatim when it can be (see rewriter quote-escaping rules).
	Prefix string
	// Indent is the whitespace preceding the opening quote on its own line,
	// used to align a re-emitted closing delimiter.
	Indent string
	// Literal is the exact byte range of the whole string literal (prefix,
	// quotes, and content), used by the rewriter to splice a replacement.
	Literal ByteRange
}

// ConstructIdentity is the comparable (kind, fully-qualified name, line) triple
// that makes a Construct hashable by identity, per the data model invariant.
type ConstructIdentity struct {
	Kind ConstructKind
	FQN  string
	Line int
}

// Construct is the unit of analysis: a named definition discovered by the
// parser, together with its location, docstring, and the byte span the
// rewriter must target.
type Construct struct {
	Name               string
	Kind               ConstructKind
	File               string // absolute path of the defining file
	Line               int    // 1-based line of the header token (def/class), 1 for modules
	FullyQualifiedName string
	ExistingDocstring  *DocstringInfo // nil if the construct has no docstring
	// Span is the byte range of the construct's header+body, used by the
	// rewriter to locate the right node on re-parse.
	Span ByteRange
}

// Identity returns the comparable identity triple used for hashing and
// deduplication, per the data model invariant that two constructs from the
// same file are distinct iff (kind, fully_qualified_name, line) differ.
func (c *Construct) Identity() ConstructIdentity {
	return ConstructIdentity{Kind: c.Kind, FQN: c.FullyQualifiedName, Line: c.Line}
}

// Reference is one usage site discovered by a backend analyzer.
type Reference struct {
	File        string
	Line        int // 1-based
	Column      int  // 0 when unknown; optional per the data model
	ContextLine string
}

// refKey is the (file, line) pair References are deduplicated on.
type refKey struct {
	File string
	Line int
}

// ReferenceSet is an ordered, duplicate-free sequence of References. Ordering
// is insertion order from whatever merge policy built it; no alphabetization
// is imposed here (that happens only at presentation time, in the rewriter).
type ReferenceSet struct {
	refs []Reference
	seen map[refKey]bool
}

// NewReferenceSet returns an empty ReferenceSet.
func NewReferenceSet() *ReferenceSet {
	return &ReferenceSet{seen: make(map[refKey]bool)}
}

// Add appends ref unless its (file, line) pair has already been seen, in
// which case it is dropped silently. Returns true if the reference was added.
func (rs *ReferenceSet) Add(ref Reference) bool {
	if rs.seen == nil {
		rs.seen = make(map[refKey]bool)
	}
	k := refKey{File: ref.File, Line: ref.Line}
	if rs.seen[k] {
		return false
	}
	rs.seen[k] = true
	rs.refs = append(rs.refs, ref)
	return true
}

// AddAll appends every reference in order, deduplicating as it goes.
func (rs *ReferenceSet) AddAll(refs []Reference) {
	for _, r := range refs {
		rs.Add(r)
	}
}

// Len returns the number of distinct references held.
func (rs *ReferenceSet) Len() int { return len(rs.refs) }

// Refs returns the references in insertion order. The returned slice must not
// be mutated by the caller.
func (rs *ReferenceSet) Refs() []Reference { return rs.refs }

// Has reports whether the (file, line) pair is already present.
func (rs *ReferenceSet) Has(file string, line int) bool {
	return rs.seen[refKey{File: file, Line: line}]
}

// Union returns a new ReferenceSet containing every reference from rs followed
// by every not-already-present reference from other, preserving rs's order
// first (first-appearance order across the merge, per the hybrid analyzer
// merge contract).
func Union(rs, other *ReferenceSet) *ReferenceSet {
	out := NewReferenceSet()
	if rs != nil {
		out.AddAll(rs.Refs())
	}
	if other != nil {
		out.AddAll(other.Refs())
	}
	return out
}

// Intersect returns a new ReferenceSet containing only references present in
// both rs and other, keyed by (file, line), in rs's order.
func Intersect(rs, other *ReferenceSet) *ReferenceSet {
	out := NewReferenceSet()
	if rs == nil || other == nil {
		return out
	}
	for _, r := range rs.Refs() {
		if other.Has(r.File, r.Line) {
			out.Add(r)
		}
	}
	return out
}

// CorpusMember is one file contributing to a SourceCorpus's fingerprint.
type CorpusMember struct {
	Path        string
	ContentHash uint64
	ModTime     time.Time
}

// CorpusFingerprint computes an order-independent identity hash over a set of
// corpus members: an unordered-multiset hash. Each member is hashed
// individually, the per-member digests are combined with XOR (a commutative,
// associative operation, so member order never affects the result), and the
// combined value is rehashed once to avoid the weaknesses of a bare XOR
// accumulator (e.g. two identical members cancelling out).
func CorpusFingerprint(members []CorpusMember) uint64 {
	var acc uint64
	for _, m := range members {
		key := m.Path + "|" + strconv.FormatUint(m.ContentHash, 16) + "|" + strconv.FormatInt(m.ModTime.UnixNano(), 10)
		acc ^= xxhash.Sum64String(key)
	}
	final := strconv.FormatUint(acc, 16) + "|" + strconv.Itoa(len(members))
	return xxhash.Sum64String(final)
}

// SortedPaths returns the deduplicated, lexicographically sorted set of
// relative paths already computed by the caller for a ReferenceSet. It exists
// as a shared helper so both the rewriter and tests produce identical
// orderings for the same input.
func SortedPaths(paths []string) []string {
	uniq := make(map[string]bool, len(paths))
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if !uniq[p] {
			uniq[p] = true
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out
}
