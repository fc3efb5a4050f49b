// Package jmdict reads the JMdict Japanese-English dictionary XML.
//
// The file is large (well over 100 MB), so Decoder streams it one <entry>
// at a time instead of building a document tree. Entities declared in the
// file's DOCTYPE (part-of-speech codes such as &n; or &v5r;) are expanded
// to their declared text.
//
// See http://www.edrdg.org/wiki/index.php/JMdict-EDICT_Dictionary_Project
// for the format.
package jmdict

// Entry is one <entry>: a unique sequence number with its kanji forms,
// readings and senses.
type Entry struct {
	EntSeq   int64
	Kanji    []Kanji
	Readings []Reading
	Senses   []Sense
}

// Kanji is a <k_ele> element.
type Kanji struct {
	Keb   string
	KeInf []string
	KePri []string
}

// Reading is an <r_ele> element.
type Reading struct {
	Reb     string
	NoKanji bool
	Restr   []string
	ReInf   []string
	RePri   []string
}

// Sense is a <sense> element. Rank is its 1-based position in the entry.
type Sense struct {
	Rank     int
	StagK    []string
	StagR    []string
	Pos      []string
	Xrefs    []Xref
	Antonyms []Xref
	Field    []string
	Misc     []string
	SInf     []string
	Lsources []Lsource
	Dial     []string
	Gloss    *Gloss
	Examples []Example
}

// Lsource records the source language of a loanword.
type Lsource struct {
	Lang    string
	Phrase  string
	Partial bool
	Wasei   bool
}

// Gloss holds a sense's glosses bucketed by g_type. Untyped glosses are
// plain definitions.
type Gloss struct {
	Defn []string
	Expl []string
	Fig  []string
	Lit  []string
	Tm   []string
}

// Example links a sense to an example sentence. Text is the form of the
// headword as it appears in the sentence.
type Example struct {
	Sentence Sentence
	Text     string
}

// Sentence is an example sentence pair identified by its source.
type Sentence struct {
	SourceType string
	Source     int64
	Eng        string
	Jpn        string
}

// XrefTag distinguishes cross-references from antonyms.
type XrefTag string

const (
	TagXref XrefTag = "xref"
	TagAnt  XrefTag = "ant"
)

// Xref points at another entry by kanji form, reading, or both, and
// optionally at one of its senses. A zero Rank means no specific sense.
type Xref struct {
	Tag  XrefTag
	Keb  string
	Reb  string
	Rank int
}

// Ref is an Xref anchored at the sense that declares it.
type Ref struct {
	EntSeq    int64
	SenseRank int
	Xref
}

// Refs returns every cross-reference and antonym in e, in document order.
func (e *Entry) Refs() []Ref {
	var refs []Ref
	for _, s := range e.Senses {
		for _, x := range s.Xrefs {
			refs = append(refs, Ref{EntSeq: e.EntSeq, SenseRank: s.Rank, Xref: x})
		}
		for _, x := range s.Antonyms {
			refs = append(refs, Ref{EntSeq: e.EntSeq, SenseRank: s.Rank, Xref: x})
		}
	}
	return refs
}

// KanjiFor returns the kanji forms of e that reading r applies to: none
// for a re_nokanji reading, the re_restr list when present, otherwise
// every kanji form of the entry.
func (r Reading) KanjiFor(e *Entry) []string {
	if r.NoKanji {
		return nil
	}
	if len(r.Restr) > 0 {
		return r.Restr
	}
	kebs := make([]string, 0, len(e.Kanji))
	for _, k := range e.Kanji {
		kebs = append(kebs, k.Keb)
	}
	return kebs
}
