package draft

import "github.com/dlparker/palaver/pkg/fuzzy"

// DefaultStartPatterns and DefaultEndPatterns are the draft boundary
// phrase cross-products ported verbatim from drafts.py's
// default_draft_start_patterns / default_draft_end_patterns.
func DefaultStartPatterns() []fuzzy.Pattern {
	var out []fuzzy.Pattern
	for _, name := range []string{"freddy", "rupert"} {
		out = append(out, fuzzy.Pattern{Phrase: name + " take this down", RequiredWords: []string{name}})

		for _, docName := range []string{"draft"} {
			for _, preamble := range []string{"", "hey ", "wake up "} {
				for _, glue := range []string{"", "a ", "the ", "uh "} {
					for _, start := range []string{"start", "new"} {
						out = append(out, fuzzy.Pattern{
							Phrase:        preamble + name + " " + start + " " + glue + docName,
							RequiredWords: []string{name, docName, start},
						})
						out = append(out, fuzzy.Pattern{
							Phrase:        preamble + name + " " + start + " " + glue + docName + " now",
							RequiredWords: []string{name, docName, start},
						})
					}
				}
			}
		}
	}
	return out
}

func DefaultEndPatterns() []fuzzy.Pattern {
	var out []fuzzy.Pattern
	for _, name := range []string{"freddy", "rupert"} {
		out = append(out,
			fuzzy.Pattern{Phrase: name + " break break ", RequiredWords: []string{name, "break"}},
			fuzzy.Pattern{Phrase: name + " great great", RequiredWords: []string{name, "great"}},
			fuzzy.Pattern{Phrase: name + " stop stop", RequiredWords: []string{name, "stop"}},
			fuzzy.Pattern{Phrase: name + " stop now", RequiredWords: []string{name, "stop"}},
		)

		for _, docName := range []string{"draft"} {
			for _, preamble := range []string{"", "hey ", "wake up "} {
				for _, stop := range []string{"stop", "close", "end"} {
					out = append(out, fuzzy.Pattern{
						Phrase:        preamble + name + " " + stop + " " + docName,
						RequiredWords: []string{name, docName, stop},
					})
					out = append(out, fuzzy.Pattern{
						Phrase:        preamble + name + " " + stop + " " + docName + " now",
						RequiredWords: []string{name, docName, stop},
					})
				}
			}
		}
	}
	out = append(out,
		fuzzy.Pattern{Phrase: "break break break"},
		fuzzy.Pattern{Phrase: "great great great"},
		fuzzy.Pattern{Phrase: "stop stop stop"},
	)
	return out
}
