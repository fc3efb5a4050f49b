package graph

import "github.com/shinji-kodama/neo4japanese/internal/jmdict"

// The driver only packs basic Go types, so entries are flattened into
// nested map[string]any / []any values before they are sent. Absent
// optional values become nil, which Cypher sees as null.

func entryParams(entries []*jmdict.Entry) []any {
	out := make([]any, 0, len(entries))
	for _, e := range entries {
		kanji := make([]any, 0, len(e.Kanji))
		for _, k := range e.Kanji {
			kanji = append(kanji, map[string]any{
				"keb":    k.Keb,
				"ke_inf": strs(k.KeInf),
				"ke_pri": strs(k.KePri),
			})
		}

		readings := make([]any, 0, len(e.Readings))
		for _, r := range e.Readings {
			readings = append(readings, map[string]any{
				"reb":        r.Reb,
				"re_nokanji": r.NoKanji,
				"re_inf":     strs(r.ReInf),
				"re_pri":     strs(r.RePri),
				"kanji":      strs(r.KanjiFor(e)),
			})
		}

		senses := make([]any, 0, len(e.Senses))
		for _, s := range e.Senses {
			senses = append(senses, senseParams(s))
		}

		out = append(out, map[string]any{
			"ent_seq":  e.EntSeq,
			"kanji":    kanji,
			"readings": readings,
			"senses":   senses,
		})
	}
	return out
}

func senseParams(s jmdict.Sense) map[string]any {
	var gloss any
	if s.Gloss != nil {
		gloss = map[string]any{
			"defn": strs(s.Gloss.Defn),
			"expl": strs(s.Gloss.Expl),
			"fig":  strs(s.Gloss.Fig),
			"lit":  strs(s.Gloss.Lit),
			"tm":   strs(s.Gloss.Tm),
		}
	}

	lsources := make([]any, 0, len(s.Lsources))
	for _, ls := range s.Lsources {
		var phrase any
		if ls.Phrase != "" {
			phrase = ls.Phrase
		}
		lsources = append(lsources, map[string]any{
			"lang":    ls.Lang,
			"phrase":  phrase,
			"partial": ls.Partial,
			"wasei":   ls.Wasei,
		})
	}

	examples := make([]any, 0, len(s.Examples))
	for _, ex := range s.Examples {
		examples = append(examples, map[string]any{
			"ex_srce":    ex.Sentence.Source,
			"exsrc_type": ex.Sentence.SourceType,
			"eng":        ex.Sentence.Eng,
			"jpn":        ex.Sentence.Jpn,
			"ex_text":    ex.Text,
		})
	}

	return map[string]any{
		"rank":     int64(s.Rank),
		"stagk":    strs(s.StagK),
		"stagr":    strs(s.StagR),
		"pos":      strs(s.Pos),
		"field":    strs(s.Field),
		"misc":     strs(s.Misc),
		"s_inf":    strs(s.SInf),
		"dial":     strs(s.Dial),
		"gloss":    gloss,
		"lsource":  lsources,
		"examples": examples,
	}
}

// refParams groups refs by the statement that writes them: tag, and
// whether the target is found by kanji form or by reading. References
// with neither are dropped.
func refParams(refs []jmdict.Ref) map[refKey][]any {
	out := make(map[refKey][]any)
	for _, r := range refs {
		if r.Keb == "" && r.Reb == "" {
			continue
		}

		key := refKey{relType: relRelated, byKanji: r.Keb != ""}
		if r.Tag == jmdict.TagAnt {
			key.relType = relAntonym
		}

		var keb, reb, targetRank any
		if r.Keb != "" {
			keb = r.Keb
		}
		if r.Reb != "" {
			reb = r.Reb
		}
		if r.Rank > 0 {
			targetRank = int64(r.Rank)
		}

		out[key] = append(out[key], map[string]any{
			"ent_seq":     r.EntSeq,
			"rank":        int64(r.SenseRank),
			"keb":         keb,
			"reb":         reb,
			"target_rank": targetRank,
		})
	}
	return out
}

// refKey selects one refStatement variant.
type refKey struct {
	relType string
	byKanji bool
}

// strs returns a non-nil slice so empty lists are stored as [] and not null.
func strs(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
