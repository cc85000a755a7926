package strusengine

import (
	"github.com/strusgo/strusengine/internal/storageimpl"
	"github.com/strusgo/strusengine/internal/structblock"
)

// DocumentBuilder accumulates one document's fields between a transaction's
// CreateDocument/UpdateDocument call and Commit (spec.md §6 "Document
// builder contract"). Calls may be made in any order; duplicate search-index
// occurrences at the same position collapse with frequency accumulation,
// while forward-index positions must be unique.
type DocumentBuilder struct {
	m *storageimpl.DocumentMutation
}

// AddSearchIndexTerm records a search-index occurrence of (termtype, value)
// at pos.
func (d *DocumentBuilder) AddSearchIndexTerm(termtype, value string, pos uint16) *DocumentBuilder {
	d.m.AddSearchIndexTerm(termtype, value, pos)
	return d
}

// AddForwardIndexTerm records a forward-index occurrence of (termtype,
// value) at pos.
func (d *DocumentBuilder) AddForwardIndexTerm(termtype, value string, pos uint16) *DocumentBuilder {
	d.m.AddForwardIndexTerm(termtype, value, pos)
	return d
}

// AddSearchIndexStructure declares a (structno, source, sink) relation for
// this document (spec.md §4.1/§4.2).
func (d *DocumentBuilder) AddSearchIndexStructure(structno int, source, sink structblock.IndexRange) *DocumentBuilder {
	d.m.AddSearchIndexStructure(structno, source, sink)
	return d
}

// SetMetaData sets one fixed-schema numeric metadata cell.
func (d *DocumentBuilder) SetMetaData(name string, value float64) *DocumentBuilder {
	d.m.SetMetaData(name, value)
	return d
}

// SetAttribute sets one schema-free string attribute.
func (d *DocumentBuilder) SetAttribute(name, value string) *DocumentBuilder {
	d.m.SetAttribute(name, value)
	return d
}

// SetUserAccessRight grants user read access to this document (spec.md §6
// "setUserAccessRight"); no-op unless the storage was opened with acl=yes.
func (d *DocumentBuilder) SetUserAccessRight(user string) *DocumentBuilder {
	d.m.SetUserAccessRight(user)
	return d
}

// RevokeUserAccessRight removes a previously granted access right. Not part
// of spec.md's builder contract; added so an update can narrow an existing
// document's ACL without a full delete-then-recreate.
func (d *DocumentBuilder) RevokeUserAccessRight(user string) *DocumentBuilder {
	d.m.RevokeUserAccessRight(user)
	return d
}

// Done finalizes the builder. It performs no work of its own; it exists so
// call sites can mirror spec.md's done() terminator explicitly instead of
// relying on the mutation simply falling out of scope.
func (d *DocumentBuilder) Done() {}
