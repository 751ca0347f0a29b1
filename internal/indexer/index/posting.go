package index

// Posting records how often a term occurs in one document.
type Posting struct {
	DocID     string `json:"d"`
	Frequency int    `json:"f"`
}

type PostingList []Posting

type TermEntry struct {
	Term     string
	Postings PostingList
}

// Source is a raw (identifier, text) pair fed to Build.
type Source struct {
	ID   string
	Text string
}

// Document is an indexed corpus entry. It is never modified after Build.
type Document struct {
	ID     string
	Text   string
	Tokens []string
	Length int
}

// Params are the BM25 smoothing constants carried by an index.
type Params struct {
	K1 float64 `json:"k1" yaml:"k1"`
	B  float64 `json:"b" yaml:"b"`
}

const (
	DefaultK1 = 1.5
	DefaultB  = 0.75
)

func DefaultParams() Params {
	return Params{K1: DefaultK1, B: DefaultB}
}
