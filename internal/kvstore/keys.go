package kvstore

import "encoding/binary"

// Key prefixes from spec.md §6 "On-disk layout". All multi-byte integers in
// keys are big-endian so lexicographic byte order matches numeric order,
// which is what lets the KV store's native range iteration double as a
// docno/position range scan.
const (
	PrefixPosting    byte = 'T' // termtype + 0x00 + termvalue + 0x00 + docno_range -> PostingBlock blob
	PrefixForward    byte = 'F' // termtype + 0x00 + docno_range -> ForwardBlock blob
	PrefixStruct     byte = 'S' // docno_range -> StructBlock blob
	PrefixMetadata   byte = 'M' // column + docno -> metadata cell
	PrefixAttribute  byte = 'A' // name + 0x00 + docno -> attribute value
	PrefixACL        byte = 'U' // user + 0x00 + docno -> ACL bit
	PrefixDocidToNo  byte = 'N' // docid -> docno
	PrefixNoToDocid  byte = 'D' // docno -> docid
	PrefixValueNo    byte = 'V' // kind + 0x00 + value -> valueno
)

func appendDocno(dst []byte, docno uint32) []byte {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], docno)
	return append(dst, buf[:]...)
}

// DecodeDocno reads a big-endian docno from the tail of a key.
func DecodeDocno(key []byte) uint32 {
	if len(key) < 4 {
		return 0
	}
	return binary.BigEndian.Uint32(key[len(key)-4:])
}

// PostingKey builds the 'T' key for one document's posting block.
func PostingKey(termtype, termvalue string, docno uint32) []byte {
	k := []byte{PrefixPosting}
	k = append(k, termtype...)
	k = append(k, 0x00)
	k = append(k, termvalue...)
	k = append(k, 0x00)
	return appendDocno(k, docno)
}

// PostingRangeStart/PostingRangeEnd bound a full scan of all posting blocks
// for one (termtype,termvalue).
func PostingRangePrefix(termtype, termvalue string) []byte {
	k := []byte{PrefixPosting}
	k = append(k, termtype...)
	k = append(k, 0x00)
	k = append(k, termvalue...)
	k = append(k, 0x00)
	return k
}

// ForwardKey builds the 'F' key for one document's forward-index block.
func ForwardKey(termtype string, docno uint32) []byte {
	k := []byte{PrefixForward}
	k = append(k, termtype...)
	k = append(k, 0x00)
	return appendDocno(k, docno)
}

func ForwardRangePrefix(termtype string) []byte {
	k := []byte{PrefixForward}
	k = append(k, termtype...)
	k = append(k, 0x00)
	return k
}

// StructKey builds the 'S' key for one document's structure block.
func StructKey(docno uint32) []byte {
	k := []byte{PrefixStruct}
	return appendDocno(k, docno)
}

// MetadataKey builds the 'M' key for one metadata cell.
func MetadataKey(column string, docno uint32) []byte {
	k := []byte{PrefixMetadata}
	k = append(k, column...)
	k = append(k, 0x00)
	return appendDocno(k, docno)
}

// AttributeKey builds the 'A' key for one attribute value.
func AttributeKey(name string, docno uint32) []byte {
	k := []byte{PrefixAttribute}
	k = append(k, name...)
	k = append(k, 0x00)
	return appendDocno(k, docno)
}

// ACLKey builds the 'U' key for one user's access bit on one document.
func ACLKey(user string, docno uint32) []byte {
	k := []byte{PrefixACL}
	k = append(k, user...)
	k = append(k, 0x00)
	return appendDocno(k, docno)
}

// DocidToNoKey builds the 'N' key mapping a docid to its docno.
func DocidToNoKey(docid string) []byte {
	k := []byte{PrefixDocidToNo}
	return append(k, docid...)
}

// NoToDocidKey builds the 'D' key mapping a docno to its docid.
func NoToDocidKey(docno uint32) []byte {
	k := []byte{PrefixNoToDocid}
	return appendDocno(k, docno)
}

// ValueNoKey builds the 'V' key mapping a (kind,value) pair to its dense
// valueno (used for term type/value numbering, spec.md §3 Term).
func ValueNoKey(kind, value string) []byte {
	k := []byte{PrefixValueNo}
	k = append(k, kind...)
	k = append(k, 0x00)
	k = append(k, value...)
	return k
}

// PrefixUpperBound returns the smallest key strictly greater than every key
// with the given prefix, used as the exclusive end bound for a range scan.
func PrefixUpperBound(prefix []byte) []byte {
	out := make([]byte, len(prefix))
	copy(out, prefix)
	for i := len(out) - 1; i >= 0; i-- {
		if out[i] != 0xFF {
			out[i]++
			return out[:i+1]
		}
	}
	return nil // prefix is all 0xFF -> unbounded
}
