package jmdict

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// ErrMalformedEntry is wrapped by errors for entries missing required data.
var ErrMalformedEntry = errors.New("malformed JMdict entry")

// xrefSeparator splits the parts of an <xref> or <ant> value (keb, reb, rank).
const xrefSeparator = "・"

// entityDecl matches a general entity declaration in the DOCTYPE subset.
var entityDecl = regexp.MustCompile(`<!ENTITY\s+([^\s%"]+)\s+"([^"]*)"\s*>`)

// kana covers Hiragana, Katakana (including the prolonged sound mark and
// the middle dot) and the Katakana phonetic extensions.
var kana = &unicode.RangeTable{
	R16: []unicode.Range16{
		{Lo: 0x3040, Hi: 0x30ff, Stride: 1},
		{Lo: 0x31f0, Hi: 0x31ff, Stride: 1},
	},
}

// Decoder reads entries from a JMdict XML stream.
type Decoder struct {
	xd    *xml.Decoder
	count int
}

// NewDecoder returns a Decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	xd := xml.NewDecoder(r)
	xd.Entity = map[string]string{}
	return &Decoder{xd: xd}
}

// Count returns the number of entries decoded so far.
func (d *Decoder) Count() int {
	return d.count
}

// Next returns the next entry, or io.EOF when the document is exhausted.
func (d *Decoder) Next() (*Entry, error) {
	for {
		tok, err := d.xd.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, io.EOF
			}
			return nil, fmt.Errorf("read JMdict XML after entry %d: %w", d.count, err)
		}

		switch t := tok.(type) {
		case xml.Directive:
			d.declareEntities(t)
		case xml.StartElement:
			if t.Name.Local != "entry" {
				continue
			}
			var raw rawEntry
			if err := d.xd.DecodeElement(&raw, &t); err != nil {
				return nil, fmt.Errorf("decode entry %d: %w", d.count+1, err)
			}
			d.count++
			return raw.entry(d.count)
		}
	}
}

// declareEntities registers the entity declarations of a DOCTYPE directive
// so references like &n; expand during decoding.
func (d *Decoder) declareEntities(dir xml.Directive) {
	if !strings.HasPrefix(strings.TrimSpace(string(dir)), "DOCTYPE") {
		return
	}
	for _, m := range entityDecl.FindAllSubmatch(dir, -1) {
		d.xd.Entity[string(m[1])] = string(m[2])
	}
}

// ParseXref splits an <xref> or <ant> value such as "丸・まる・1" into
// its kanji form, reading and sense rank. Digits are the rank, all-kana
// parts the reading, and anything else the kanji form.
func ParseXref(tag XrefTag, text string) Xref {
	x := Xref{Tag: tag}
	for _, part := range strings.Split(strings.TrimSpace(text), xrefSeparator) {
		switch {
		case part == "":
		case isDigits(part):
			x.Rank, _ = strconv.Atoi(part)
		case IsKana(part):
			x.Reb = part
		default:
			x.Keb = part
		}
	}
	return x
}

// IsKana reports whether every rune of s is a kana character.
func IsKana(s string) bool {
	for _, r := range s {
		if !unicode.Is(kana, r) {
			return false
		}
	}
	return true
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

// presence marks an empty flag element such as <re_nokanji/>.
type presence struct{}

type rawEntry struct {
	EntSeq string     `xml:"ent_seq"`
	KEle   []rawKEle  `xml:"k_ele"`
	REle   []rawREle  `xml:"r_ele"`
	Sense  []rawSense `xml:"sense"`
}

type rawKEle struct {
	Keb   *string  `xml:"keb"`
	KeInf []string `xml:"ke_inf"`
	KePri []string `xml:"ke_pri"`
}

type rawREle struct {
	Reb       *string   `xml:"reb"`
	ReNokanji *presence `xml:"re_nokanji"`
	ReRestr   []string  `xml:"re_restr"`
	ReInf     []string  `xml:"re_inf"`
	RePri     []string  `xml:"re_pri"`
}

type rawSense struct {
	StagK   []string     `xml:"stagk"`
	StagR   []string     `xml:"stagr"`
	Pos     []string     `xml:"pos"`
	Xref    []string     `xml:"xref"`
	Ant     []string     `xml:"ant"`
	Field   []string     `xml:"field"`
	Misc    []string     `xml:"misc"`
	SInf    []string     `xml:"s_inf"`
	Lsource []rawLsource `xml:"lsource"`
	Dial    []string     `xml:"dial"`
	Gloss   []rawGloss   `xml:"gloss"`
	Example []rawExample `xml:"example"`
}

type rawLsource struct {
	Lang    string `xml:"http://www.w3.org/XML/1998/namespace lang,attr"`
	LsType  string `xml:"ls_type,attr"`
	LsWasei string `xml:"ls_wasei,attr"`
	Text    string `xml:",chardata"`
}

type rawGloss struct {
	GType string `xml:"g_type,attr"`
	Text  string `xml:",chardata"`
}

type rawExample struct {
	Srce rawExSrce   `xml:"ex_srce"`
	Text string      `xml:"ex_text"`
	Sent []rawExSent `xml:"ex_sent"`
}

type rawExSrce struct {
	Type  string `xml:"exsrc_type,attr"`
	Value string `xml:",chardata"`
}

type rawExSent struct {
	Lang string `xml:"http://www.w3.org/XML/1998/namespace lang,attr"`
	Text string `xml:",chardata"`
}

// entry converts the decoded element; index is its 1-based position in
// the document and only appears in errors.
func (r *rawEntry) entry(index int) (*Entry, error) {
	seq, err := strconv.ParseInt(strings.TrimSpace(r.EntSeq), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: entry %d: invalid ent_seq %q", ErrMalformedEntry, index, r.EntSeq)
	}

	e := &Entry{EntSeq: seq}

	for _, k := range r.KEle {
		if k.Keb == nil {
			return nil, fmt.Errorf("%w: ent_seq %d: k_ele without keb", ErrMalformedEntry, seq)
		}
		e.Kanji = append(e.Kanji, Kanji{Keb: *k.Keb, KeInf: k.KeInf, KePri: k.KePri})
	}

	for _, rd := range r.REle {
		if rd.Reb == nil {
			return nil, fmt.Errorf("%w: ent_seq %d: r_ele without reb", ErrMalformedEntry, seq)
		}
		e.Readings = append(e.Readings, Reading{
			Reb:     *rd.Reb,
			NoKanji: rd.ReNokanji != nil,
			Restr:   rd.ReRestr,
			ReInf:   rd.ReInf,
			RePri:   rd.RePri,
		})
	}

	for i, s := range r.Sense {
		sense, err := s.sense(e, i+1)
		if err != nil {
			return nil, fmt.Errorf("%w: ent_seq %d: sense %d: %v", ErrMalformedEntry, seq, i+1, err)
		}
		e.Senses = append(e.Senses, sense)
	}

	return e, nil
}

// sense converts a <sense>. Missing stagk/stagr restrictions mean the
// sense applies to every kanji form and reading of e.
func (s *rawSense) sense(e *Entry, rank int) (Sense, error) {
	out := Sense{
		Rank:  rank,
		StagK: s.StagK,
		StagR: s.StagR,
		Pos:   s.Pos,
		Field: s.Field,
		Misc:  s.Misc,
		SInf:  s.SInf,
		Dial:  s.Dial,
		Gloss: glossOf(s.Gloss),
	}

	if len(out.StagK) == 0 {
		for _, k := range e.Kanji {
			out.StagK = append(out.StagK, k.Keb)
		}
	}
	if len(out.StagR) == 0 {
		for _, r := range e.Readings {
			out.StagR = append(out.StagR, r.Reb)
		}
	}

	for _, x := range s.Xref {
		out.Xrefs = append(out.Xrefs, ParseXref(TagXref, x))
	}
	for _, x := range s.Ant {
		out.Antonyms = append(out.Antonyms, ParseXref(TagAnt, x))
	}

	for _, ls := range s.Lsource {
		lang := ls.Lang
		if lang == "" {
			lang = "eng"
		}
		out.Lsources = append(out.Lsources, Lsource{
			Lang:    lang,
			Phrase:  ls.Text,
			Partial: ls.LsType == "part" || ls.LsType == "partial",
			Wasei:   ls.LsWasei == "y",
		})
	}

	for _, ex := range s.Example {
		example, err := ex.example()
		if err != nil {
			return Sense{}, err
		}
		out.Examples = append(out.Examples, example)
	}

	return out, nil
}

// glossOf buckets glosses by g_type, returning nil for a sense without any.
func glossOf(glosses []rawGloss) *Gloss {
	if len(glosses) == 0 {
		return nil
	}
	g := &Gloss{}
	for _, gl := range glosses {
		switch gl.GType {
		case "":
			g.Defn = append(g.Defn, gl.Text)
		case "expl":
			g.Expl = append(g.Expl, gl.Text)
		case "fig":
			g.Fig = append(g.Fig, gl.Text)
		case "lit":
			g.Lit = append(g.Lit, gl.Text)
		case "tm":
			g.Tm = append(g.Tm, gl.Text)
		}
	}
	if len(g.Defn)+len(g.Expl)+len(g.Fig)+len(g.Lit)+len(g.Tm) == 0 {
		return nil
	}
	return g
}

func (ex *rawExample) example() (Example, error) {
	src, err := strconv.ParseInt(strings.TrimSpace(ex.Srce.Value), 10, 64)
	if err != nil {
		return Example{}, fmt.Errorf("invalid ex_srce %q", ex.Srce.Value)
	}

	sents := make(map[string]string, len(ex.Sent))
	for _, s := range ex.Sent {
		lang := s.Lang
		if lang == "" {
			lang = "eng"
		}
		sents[lang] = s.Text
	}

	return Example{
		Sentence: Sentence{
			SourceType: ex.Srce.Type,
			Source:     src,
			Eng:        sents["eng"],
			Jpn:        sents["jpn"],
		},
		Text: ex.Text,
	}, nil
}
