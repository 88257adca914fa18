package index

import (
	"encoding/binary"
	"fmt"
	"strings"
	"time"
)

// Key layout inside a dictionary:
//
//	t\x00<token>\x00<docKey>  delta-encoded positions of token in the document
//	k\x00<token>              number of documents containing token
//	d\x00<docKey>             JSON docRecord
const (
	postingPrefix = "t\x00"
	tokenPrefix   = "k\x00"
	docPrefix     = "d\x00"
	sep           = "\x00"
	keySep        = "\x1e"
)

// ObjectReference identifies an indexed object: the collection it lives in,
// its id there, and its creation time.
type ObjectReference struct {
	Collection string    `json:"collection"`
	ObjectID   string    `json:"id"`
	Created    time.Time `json:"created"`
}

// Key returns the document key used in postings. It is unique across all
// collections that share an index.
func (r ObjectReference) Key() string {
	return r.Collection + keySep + r.ObjectID
}

// SplitKey reverses ObjectReference.Key.
func SplitKey(docKey string) (collection, objectID string) {
	collection, objectID, _ = strings.Cut(docKey, keySep)
	return collection, objectID
}

// Posting holds the occurrence positions of one token in one document.
type Posting struct {
	DocKey    string
	Positions []int
}

func (p Posting) Frequency() int {
	return len(p.Positions)
}

type docRecord struct {
	Ref    ObjectReference `json:"ref"`
	Tokens []string        `json:"tokens"`
}

// Stats summarises one index collection.
type Stats struct {
	Name      string `json:"name"`
	Tokens    int    `json:"tokens"`
	Documents int    `json:"documents"`
}

func postingKey(token, docKey string) string {
	return postingPrefix + token + sep + docKey
}

func tokenKey(token string) string {
	return tokenPrefix + token
}

func docKeyOf(key string) string {
	return docPrefix + key
}

// encodePositions writes the count followed by the gaps between positions.
func encodePositions(positions []int) []byte {
	buf := make([]byte, 0, binary.MaxVarintLen32*(len(positions)+1))
	buf = binary.AppendUvarint(buf, uint64(len(positions)))
	prev := 0
	for _, p := range positions {
		buf = binary.AppendUvarint(buf, uint64(p-prev))
		prev = p
	}
	return buf
}

func decodePositions(data []byte) ([]int, error) {
	n, read := binary.Uvarint(data)
	if read <= 0 {
		return nil, fmt.Errorf("corrupt posting: bad length")
	}
	data = data[read:]
	positions := make([]int, 0, n)
	prev := 0
	for i := uint64(0); i < n; i++ {
		gap, read := binary.Uvarint(data)
		if read <= 0 {
			return nil, fmt.Errorf("corrupt posting: truncated at entry %d", i)
		}
		data = data[read:]
		prev += int(gap)
		positions = append(positions, prev)
	}
	return positions, nil
}

func encodeCount(n int) []byte {
	return binary.AppendUvarint(nil, uint64(n))
}

func decodeCount(data []byte) int {
	n, read := binary.Uvarint(data)
	if read <= 0 {
		return 0
	}
	return int(n)
}
