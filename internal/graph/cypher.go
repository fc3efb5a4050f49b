package graph

import "fmt"

// schemaStatements create the constraints and indexes the import relies
// on. Each is idempotent.
var schemaStatements = []string{
	`CREATE CONSTRAINT entry_ent_seq IF NOT EXISTS FOR (n:Entry) REQUIRE n.ent_seq IS UNIQUE`,
	`CREATE CONSTRAINT sentence_ex_srce IF NOT EXISTS FOR (n:Sentence) REQUIRE n.ex_srce IS UNIQUE`,
	`CREATE CONSTRAINT language_name IF NOT EXISTS FOR (n:Language) REQUIRE n.name IS UNIQUE`,
	`CREATE INDEX kanji_keb IF NOT EXISTS FOR (n:Kanji) ON (n.keb)`,
	`CREATE INDEX reading_reb IF NOT EXISTS FOR (n:Reading) ON (n.reb)`,
}

// batchStatements run in order inside one write transaction per batch.
// All take $entries as produced by entryParams.
var batchStatements = []string{
	// entries
	`UNWIND $entries AS entry
MERGE (:Entry {ent_seq: entry.ent_seq})`,

	// kanji
	`UNWIND $entries AS entry
MATCH (e:Entry {ent_seq: entry.ent_seq})
UNWIND entry.kanji AS kanji
MERGE (e)-[:CONTAINS]->(k:Kanji {keb: kanji.keb})
ON CREATE SET k.ke_inf = kanji.ke_inf, k.ke_pri = kanji.ke_pri`,

	// readings and the kanji they apply to
	`UNWIND $entries AS entry
MATCH (e:Entry {ent_seq: entry.ent_seq})
UNWIND entry.readings AS reading
MERGE (e)-[:CONTAINS]->(r:Reading {reb: reading.reb})
ON CREATE SET r.re_inf = reading.re_inf, r.re_pri = reading.re_pri, r.re_nokanji = reading.re_nokanji
WITH e, r, reading
UNWIND reading.kanji AS keb
MATCH (e)-[:CONTAINS]->(k:Kanji {keb: keb})
MERGE (k)-[:HAS_READING]->(r)`,

	// senses, ranked by position
	`UNWIND $entries AS entry
MATCH (e:Entry {ent_seq: entry.ent_seq})
UNWIND entry.senses AS sense
MERGE (e)-[:CONTAINS {rank: sense.rank}]->(s:Sense)
ON CREATE SET s.pos = sense.pos, s.field = sense.field, s.misc = sense.misc, s.s_inf = sense.s_inf, s.dial = sense.dial`,

	// glosses
	`UNWIND $entries AS entry
UNWIND entry.senses AS sense
WITH entry, sense WHERE sense.gloss IS NOT NULL
MATCH (:Entry {ent_seq: entry.ent_seq})-[:CONTAINS {rank: sense.rank}]->(s:Sense)
MERGE (s)-[:HAS_GLOSS]->(g:Gloss)
ON CREATE SET g.defn = sense.gloss.defn, g.expl = sense.gloss.expl, g.fig = sense.gloss.fig, g.lit = sense.gloss.lit, g.tm = sense.gloss.tm`,

	// kanji restrictions
	`UNWIND $entries AS entry
MATCH (e:Entry {ent_seq: entry.ent_seq})
UNWIND entry.senses AS sense
MATCH (e)-[:CONTAINS {rank: sense.rank}]->(s:Sense)
UNWIND sense.stagk AS keb
MATCH (e)-[:CONTAINS]->(k:Kanji {keb: keb})
MERGE (k)-[:HAS_SENSE]->(s)`,

	// reading restrictions
	`UNWIND $entries AS entry
MATCH (e:Entry {ent_seq: entry.ent_seq})
UNWIND entry.senses AS sense
MATCH (e)-[:CONTAINS {rank: sense.rank}]->(s:Sense)
UNWIND sense.stagr AS reb
MATCH (e)-[:CONTAINS]->(r:Reading {reb: reb})
MERGE (r)-[:HAS_SENSE]->(s)`,

	// loanword sources
	`UNWIND $entries AS entry
MATCH (e:Entry {ent_seq: entry.ent_seq})
UNWIND entry.senses AS sense
MATCH (e)-[:CONTAINS {rank: sense.rank}]->(s:Sense)
UNWIND sense.lsource AS ls
MERGE (l:Language {name: ls.lang})
MERGE (s)-[r:SOURCED_FROM]->(l)
ON CREATE SET r.phrase = ls.phrase, r.partial = ls.partial, r.wasei = ls.wasei`,

	// example sentences
	`UNWIND $entries AS entry
MATCH (e:Entry {ent_seq: entry.ent_seq})
UNWIND entry.senses AS sense
MATCH (e)-[:CONTAINS {rank: sense.rank}]->(s:Sense)
UNWIND sense.examples AS ex
MERGE (x:Sentence {ex_srce: ex.ex_srce})
ON CREATE SET x.exsrc_type = ex.exsrc_type, x.eng = ex.eng, x.jpn = ex.jpn
MERGE (s)-[r:USED_IN]->(x)
ON CREATE SET r.ex_text = ex.ex_text`,
}

// Relationship types for sense references.
const (
	relRelated = "RELATED_TO"
	relAntonym = "ANTONYM_OF"
)

// refStatement links each source sense in $refs to the entries it points
// at. Entries are found through their kanji form when the reference has
// one, otherwise through their reading. When the reference names a sense
// rank the link ends at that sense, else at the entry itself.
func refStatement(relType string, byKanji bool) string {
	anchor := `MATCH (:Reading {reb: ref.reb})<-[:CONTAINS]-(target:Entry)`
	if byKanji {
		anchor = `MATCH (:Kanji {keb: ref.keb})<-[:CONTAINS]-(target:Entry)
WHERE ref.reb IS NULL OR (target)-[:CONTAINS]->(:Reading {reb: ref.reb})`
	}

	return fmt.Sprintf(`UNWIND $refs AS ref
MATCH (:Entry {ent_seq: ref.ent_seq})-[:CONTAINS {rank: ref.rank}]->(src:Sense)
%s
OPTIONAL MATCH (target)-[:CONTAINS {rank: ref.target_rank}]->(dst:Sense)
WITH src, coalesce(dst, target) AS dst
WHERE dst <> src
MERGE (src)-[:%s]->(dst)`, anchor, relType)
}
