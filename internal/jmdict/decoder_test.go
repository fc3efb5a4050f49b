package jmdict

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleJMdict = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE JMdict [
<!ELEMENT JMdict (entry*)>
<!-- part of speech -->
<!ENTITY n "noun (common) (futsuumeishi)">
<!ENTITY v5r "Godan verb with 'ru' ending">
<!ENTITY uk "word usually written using kana alone">
<!ENTITY ateji "ateji (phonetic) reading">
]>
<JMdict>
<entry>
<ent_seq>1000220</ent_seq>
<k_ele>
<keb>明白</keb>
<ke_pri>ichi1</ke_pri>
</k_ele>
<r_ele>
<reb>めいはく</reb>
<re_pri>ichi1</re_pri>
</r_ele>
<sense>
<pos>&n;</pos>
<xref>明らか・あきらか・1</xref>
<ant>曖昧</ant>
<gloss>obvious</gloss>
<gloss>clear</gloss>
<gloss g_type="lit">bright white</gloss>
<example>
<ex_srce exsrc_type="tat">80986</ex_srce>
<ex_text>明白</ex_text>
<ex_sent xml:lang="jpn">それは明白だ。</ex_sent>
<ex_sent xml:lang="eng">It is obvious.</ex_sent>
</example>
</sense>
</entry>
<entry>
<ent_seq>1000320</ent_seq>
<k_ele>
<keb>彼処</keb>
<ke_inf>&ateji;</ke_inf>
</k_ele>
<k_ele>
<keb>彼所</keb>
</k_ele>
<r_ele>
<reb>あそこ</reb>
</r_ele>
<r_ele>
<reb>かしこ</reb>
<re_restr>彼処</re_restr>
</r_ele>
<r_ele>
<reb>アソコ</reb>
<re_nokanji/>
</r_ele>
<sense>
<stagr>あそこ</stagr>
<pos>&n;</pos>
<misc>&uk;</misc>
<lsource xml:lang="ger" ls_type="part" ls_wasei="y">Arbeit</lsource>
<lsource>over there</lsource>
<gloss g_type="expl">place far from both speaker and listener</gloss>
</sense>
<sense>
<pos>&v5r;</pos>
<s_inf>colloquial</s_inf>
</sense>
</entry>
</JMdict>
`

func decodeAll(t *testing.T, doc string) []*Entry {
	t.Helper()
	d := NewDecoder(strings.NewReader(doc))
	var entries []*Entry
	for {
		e, err := d.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		entries = append(entries, e)
	}
	assert.Equal(t, len(entries), d.Count())
	return entries
}

// TestDecoder_Entries verifies streaming, entity expansion and the
// per-element rules on a two-entry document.
func TestDecoder_Entries(t *testing.T) {
	entries := decodeAll(t, sampleJMdict)
	require.Len(t, entries, 2)

	first := entries[0]
	assert.Equal(t, int64(1000220), first.EntSeq)
	require.Len(t, first.Kanji, 1)
	assert.Equal(t, Kanji{Keb: "明白", KePri: []string{"ichi1"}}, first.Kanji[0])
	require.Len(t, first.Senses, 1)

	s := first.Senses[0]
	assert.Equal(t, 1, s.Rank)
	assert.Equal(t, []string{"noun (common) (futsuumeishi)"}, s.Pos, "entity expanded")
	assert.Equal(t, []string{"明白"}, s.StagK, "defaults to every keb")
	assert.Equal(t, []string{"めいはく"}, s.StagR, "defaults to every reb")
	assert.Equal(t, []Xref{{Tag: TagXref, Keb: "明らか", Reb: "あきらか", Rank: 1}}, s.Xrefs)
	assert.Equal(t, []Xref{{Tag: TagAnt, Keb: "曖昧"}}, s.Antonyms)
	require.NotNil(t, s.Gloss)
	assert.Equal(t, []string{"obvious", "clear"}, s.Gloss.Defn)
	assert.Equal(t, []string{"bright white"}, s.Gloss.Lit)
	require.Len(t, s.Examples, 1)
	assert.Equal(t, Example{
		Sentence: Sentence{SourceType: "tat", Source: 80986, Eng: "It is obvious.", Jpn: "それは明白だ。"},
		Text:     "明白",
	}, s.Examples[0])

	second := entries[1]
	assert.Equal(t, []string{"ateji (phonetic) reading"}, second.Kanji[0].KeInf)
	require.Len(t, second.Readings, 3)
	assert.False(t, second.Readings[0].NoKanji)
	assert.Equal(t, []string{"彼処"}, second.Readings[1].Restr)
	assert.True(t, second.Readings[2].NoKanji)

	require.Len(t, second.Senses, 2)
	s1, s2 := second.Senses[0], second.Senses[1]
	assert.Equal(t, []string{"あそこ"}, s1.StagR, "explicit restriction kept")
	assert.Equal(t, []string{"彼処", "彼所"}, s1.StagK)
	assert.Equal(t, []string{"word usually written using kana alone"}, s1.Misc)
	assert.Equal(t, []Lsource{
		{Lang: "ger", Phrase: "Arbeit", Partial: true, Wasei: true},
		{Lang: "eng", Phrase: "over there"},
	}, s1.Lsources)
	require.NotNil(t, s1.Gloss)
	assert.Empty(t, s1.Gloss.Defn)
	assert.Len(t, s1.Gloss.Expl, 1)

	assert.Equal(t, 2, s2.Rank)
	assert.Nil(t, s2.Gloss, "no gloss elements")
	assert.Equal(t, []string{"colloquial"}, s2.SInf)
	assert.Equal(t, []string{"あそこ", "かしこ", "アソコ"}, s2.StagR)
}

// TestDecoder_Empty verifies a document without entries.
func TestDecoder_Empty(t *testing.T) {
	d := NewDecoder(strings.NewReader(`<JMdict></JMdict>`))
	_, err := d.Next()
	assert.ErrorIs(t, err, io.EOF)
}

// TestDecoder_Malformed verifies that invalid entries are reported.
func TestDecoder_Malformed(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"missing ent_seq", `<JMdict><entry><r_ele><reb>あ</reb></r_ele></entry></JMdict>`},
		{"non-numeric ent_seq", `<JMdict><entry><ent_seq>x1</ent_seq></entry></JMdict>`},
		{"reading without reb", `<JMdict><entry><ent_seq>1</ent_seq><r_ele><re_pri>news1</re_pri></r_ele></entry></JMdict>`},
		{"kanji without keb", `<JMdict><entry><ent_seq>1</ent_seq><k_ele><ke_pri>news1</ke_pri></k_ele></entry></JMdict>`},
		{"bad example source", `<JMdict><entry><ent_seq>1</ent_seq><sense><example><ex_srce>abc</ex_srce></example></sense></entry></JMdict>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewDecoder(strings.NewReader(tt.doc)).Next()
			assert.ErrorIs(t, err, ErrMalformedEntry)
		})
	}
}

// TestDecoder_UndeclaredEntity verifies that an unknown entity is a
// syntax error rather than silently dropped text.
func TestDecoder_UndeclaredEntity(t *testing.T) {
	doc := `<JMdict><entry><ent_seq>1</ent_seq><sense><pos>&n;</pos></sense></entry></JMdict>`
	_, err := NewDecoder(strings.NewReader(doc)).Next()
	require.Error(t, err)
	assert.NotErrorIs(t, err, io.EOF)
}

// TestParseXref verifies splitting of reference values.
func TestParseXref(t *testing.T) {
	tests := []struct {
		text string
		want Xref
	}{
		{"明らか・あきらか・1", Xref{Tag: TagXref, Keb: "明らか", Reb: "あきらか", Rank: 1}},
		{"あきらか", Xref{Tag: TagXref, Reb: "あきらか"}},
		{"カード・2", Xref{Tag: TagXref, Reb: "カード", Rank: 2}},
		{"ＣＤ", Xref{Tag: TagXref, Keb: "ＣＤ"}},
		{"丸", Xref{Tag: TagXref, Keb: "丸"}},
		{"丸・12", Xref{Tag: TagXref, Keb: "丸", Rank: 12}},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseXref(TagXref, tt.text))
		})
	}
}

// TestIsKana verifies the kana ranges.
func TestIsKana(t *testing.T) {
	assert.True(t, IsKana("ひらがな"))
	assert.True(t, IsKana("カタカナー"))
	assert.True(t, IsKana("ㇰ"))
	assert.False(t, IsKana("漢字"))
	assert.False(t, IsKana("かな1"))
}

// TestEntry_Refs verifies that refs carry their declaring sense.
func TestEntry_Refs(t *testing.T) {
	e := &Entry{
		EntSeq: 7,
		Senses: []Sense{
			{Rank: 1, Xrefs: []Xref{{Tag: TagXref, Keb: "a"}}},
			{Rank: 2, Antonyms: []Xref{{Tag: TagAnt, Reb: "b"}}},
		},
	}
	assert.Equal(t, []Ref{
		{EntSeq: 7, SenseRank: 1, Xref: Xref{Tag: TagXref, Keb: "a"}},
		{EntSeq: 7, SenseRank: 2, Xref: Xref{Tag: TagAnt, Reb: "b"}},
	}, e.Refs())
}

// TestReading_KanjiFor verifies re_restr and re_nokanji handling.
func TestReading_KanjiFor(t *testing.T) {
	e := &Entry{Kanji: []Kanji{{Keb: "彼処"}, {Keb: "彼所"}}}
	assert.Equal(t, []string{"彼処", "彼所"}, Reading{Reb: "あそこ"}.KanjiFor(e))
	assert.Equal(t, []string{"彼処"}, Reading{Reb: "かしこ", Restr: []string{"彼処"}}.KanjiFor(e))
	assert.Nil(t, Reading{Reb: "アソコ", NoKanji: true}.KanjiFor(e))
}
