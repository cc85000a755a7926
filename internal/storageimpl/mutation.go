package storageimpl

import "github.com/strusgo/strusengine/internal/structblock"

// TermOccurrence is one (type, value, position) triple from the document
// builder contract (spec.md §6 "addSearchIndexTerm"/"addForwardIndexTerm").
// For forward-index terms Value holds the literal term text carried into
// the reader; for search-index terms only Type/Value identify the posting
// group and Position locates the occurrence within the document.
type TermOccurrence struct {
	Type     string
	Value    string
	Position uint16
}

// StructureDecl is one addSearchIndexStructure(struct,src,sink) call.
type StructureDecl struct {
	Structno int
	Source   structblock.IndexRange
	Sink     structblock.IndexRange
}

// DocumentMutation accumulates one document's field lists between
// DocumentBuilder calls and Transaction.Commit (spec.md §6 "Document builder
// contract"): search-index terms, forward-index terms, structure
// declarations, metadata cells, attributes and ACL grants/revokes for one
// document, gathered in any call order and applied together at commit.
type DocumentMutation struct {
	// Docid identifies the document. Docno is 0 for a CreateDocument
	// mutation whose caller wants the client to allocate one; it is
	// resolved to the existing docno for UpdateDocument mutations once
	// Transaction.Commit looks up Docid.
	Docid string
	Docno uint32

	SearchTerms  []TermOccurrence
	ForwardTerms []TermOccurrence
	Structures   []StructureDecl

	Metadata   map[string]float64
	Attributes map[string]string

	ACLGrants  []string
	ACLRevokes []string
}

func newMutation(docid string) *DocumentMutation {
	return &DocumentMutation{
		Docid:      docid,
		Metadata:   make(map[string]float64),
		Attributes: make(map[string]string),
	}
}

// AddSearchIndexTerm records one search-index occurrence (spec.md §6
// "addSearchIndexTerm(type,value,pos)"). Duplicate (type,value,pos) triples
// within the same mutation collapse into accumulated frequency once the
// posting block is built, matching the spec's search-index duplicate rule.
func (m *DocumentMutation) AddSearchIndexTerm(termtype, value string, pos uint16) {
	m.SearchTerms = append(m.SearchTerms, TermOccurrence{Type: termtype, Value: value, Position: pos})
}

// AddForwardIndexTerm records one forward-index entry (spec.md §6
// "addForwardIndexTerm(type,value,pos)"). Positions must be unique per
// termtype within one document; Transaction.Commit surfaces a duplicate as
// an InvalidArgument error rather than silently overwriting.
func (m *DocumentMutation) AddForwardIndexTerm(termtype, value string, pos uint16) {
	m.ForwardTerms = append(m.ForwardTerms, TermOccurrence{Type: termtype, Value: value, Position: pos})
}

// AddSearchIndexStructure records one structure relation (spec.md §6
// "addSearchIndexStructure(struct,src,sink)"). Supplying at least one
// structure declaration in an update replaces the document's entire
// structure block; supplying none leaves an existing structure block
// untouched (see Transaction.Commit's per-concern replace policy).
func (m *DocumentMutation) AddSearchIndexStructure(structno int, source, sink structblock.IndexRange) {
	m.Structures = append(m.Structures, StructureDecl{Structno: structno, Source: source, Sink: sink})
}

// SetMetaData sets one metadata cell (spec.md §6 "setMetaData(name,
// numeric)").
func (m *DocumentMutation) SetMetaData(name string, value float64) {
	m.Metadata[name] = value
}

// SetAttribute sets one attribute value (spec.md §6 "setAttribute(name,
// string)").
func (m *DocumentMutation) SetAttribute(name, value string) {
	m.Attributes[name] = value
}

// SetUserAccessRight grants user read access to this document (spec.md §6
// "setUserAccessRight(user)").
func (m *DocumentMutation) SetUserAccessRight(user string) {
	m.ACLGrants = append(m.ACLGrants, user)
}

// RevokeUserAccessRight removes a previously granted access right; not named
// in spec.md's builder contract but needed for updates that narrow an
// existing document's ACL, so it is added as a supplementary operation
// (SPEC_FULL.md §5 "Supplemented features").
func (m *DocumentMutation) RevokeUserAccessRight(user string) {
	m.ACLRevokes = append(m.ACLRevokes, user)
}
